// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// STRUCTURED RESULT PAYLOADS
// =============================================================================

// DiagnosisCard is one finding from the strategy-diagnosis assistant.
type DiagnosisCard struct {
	Title      string `json:"title"`
	Severity   string `json:"severity"` // "info", "warning", "critical"
	Symbol     string `json:"symbol,omitempty"`
	Summary    string `json:"summary"`
	Suggestion string `json:"suggestion,omitempty"`
}

// SignalConfig is a generated trading-signal configuration.
type SignalConfig struct {
	Name       string             `json:"name"`
	Symbol     string             `json:"symbol"`
	Timeframe  string             `json:"timeframe"`
	Direction  string             `json:"direction"` // "long", "short", "both"
	Entry      string             `json:"entry"`
	StopLoss   string             `json:"stop_loss,omitempty"`
	TakeProfit string             `json:"take_profit,omitempty"`
	Params     map[string]float64 `json:"params,omitempty"`
}

// GeneratedPrompt is a strategy prompt produced by the prompt-generation
// assistant, editable by the user afterwards.
type GeneratedPrompt struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// FinalPayload is the structured result attached to a completed assistant
// reply. Exactly which fields are populated depends on which assistant the
// conversation is bound to; all three may be empty for plain chat replies.
type FinalPayload struct {
	Diagnoses     []DiagnosisCard  `json:"diagnoses,omitempty"`
	SignalConfigs []SignalConfig   `json:"signal_configs,omitempty"`
	Prompt        *GeneratedPrompt `json:"generated_prompt,omitempty"`
}

// IsEmpty reports whether the payload carries no results at all.
func (p FinalPayload) IsEmpty() bool {
	return len(p.Diagnoses) == 0 && len(p.SignalConfigs) == 0 && p.Prompt == nil
}

// Clone returns a deep copy of the payload.
func (p FinalPayload) Clone() FinalPayload {
	cp := p
	if p.Diagnoses != nil {
		cp.Diagnoses = make([]DiagnosisCard, len(p.Diagnoses))
		copy(cp.Diagnoses, p.Diagnoses)
	}
	if p.SignalConfigs != nil {
		cp.SignalConfigs = make([]SignalConfig, len(p.SignalConfigs))
		for i, sc := range p.SignalConfigs {
			cp.SignalConfigs[i] = sc
			if sc.Params != nil {
				params := make(map[string]float64, len(sc.Params))
				for k, v := range sc.Params {
					params[k] = v
				}
				cp.SignalConfigs[i].Params = params
			}
		}
	}
	if p.Prompt != nil {
		prompt := *p.Prompt
		cp.Prompt = &prompt
	}
	return cp
}

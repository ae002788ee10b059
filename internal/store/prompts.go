// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/model"
)

// =============================================================================
// PROMPT LIBRARY
// =============================================================================

// SavedPrompt is one entry in the local prompt library.
type SavedPrompt struct {
	ID        int64
	Title     string
	Body      string
	CreatedAt time.Time
}

// SavePrompt stores a generated prompt (possibly edited by the user) in
// the library and returns its id.
func (s *Store) SavePrompt(ctx context.Context, p model.GeneratedPrompt) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (title, body, created_at) VALUES (?, ?, ?)`,
		p.Title, p.Body, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return id, nil
}

// Prompts returns the library, newest first.
func (s *Store) Prompts(ctx context.Context) ([]SavedPrompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, created_at
		FROM prompts
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var prompts []SavedPrompt
	for rows.Next() {
		var p SavedPrompt
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// Prompt returns one library entry by id.
func (s *Store) Prompt(ctx context.Context, id int64) (SavedPrompt, error) {
	var p SavedPrompt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, created_at FROM prompts WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Body, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedPrompt{}, ErrNotFound
	}
	if err != nil {
		return SavedPrompt{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return p, nil
}

// DeletePrompt removes a library entry.
func (s *Store) DeletePrompt(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

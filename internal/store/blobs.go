package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned by OpenFile when no blob exists for the id.
var ErrFileNotFound = errors.New("file not found")

// SaveFile stores the bytes read from r under the original filename and
// returns the generated file id. Nothing is persisted if the read or the
// insert fails.
func (s *Store) SaveFile(ctx context.Context, name string, r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (id, name, content, created_at) VALUES (?, ?, ?, ?)`,
		id, name, content, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	return id, nil
}

// OpenFile looks up a stored blob by id and returns its original filename
// together with a reader over its content. Returns ErrFileNotFound when the
// id is unknown.
func (s *Store) OpenFile(ctx context.Context, id string) (string, io.ReadCloser, error) {
	var name string
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT name, content FROM files WHERE id = ?`, id).Scan(&name, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrFileNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to query file: %w", err)
	}

	return name, io.NopCloser(bytes.NewReader(content)), nil
}

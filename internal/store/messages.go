package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PageSize is the number of messages returned per history page.
const PageSize = 3

// ChatMessage is one persisted chat message. A message is immutable once
// inserted; the text may carry a server-appended download-link fragment when
// the sender attached a file. Username is nil when the sender joined without
// a display name.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	Username  *string   `json:"username,omitempty"`
}

// InsertMessage appends msg to the message log and assigns its ID. The call
// returns only after SQLite has acknowledged the write, so callers may treat
// a nil error as "persisted" before broadcasting.
func (s *Store) InsertMessage(ctx context.Context, msg *ChatMessage) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room, username, text, created_at) VALUES (?, ?, ?, ?)`,
		msg.Room, msg.Username, msg.Text, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted message id: %w", err)
	}
	msg.ID = id

	return nil
}

// MessagesByRoom returns one page of the room's history, newest first.
// Page k covers offsets [k*PageSize, k*PageSize+PageSize) of the messages
// ordered by descending insertion order; the result is not re-sorted for
// display. Pages below zero are treated as page zero.
func (s *Store) MessagesByRoom(ctx context.Context, room string, page int) ([]ChatMessage, error) {
	if page < 0 {
		page = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, username, text, created_at
		 FROM messages
		 WHERE room = ?
		 ORDER BY id DESC
		 LIMIT ? OFFSET ?`,
		room, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var username sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Room, &username, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if username.Valid {
			msg.Username = &username.String
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

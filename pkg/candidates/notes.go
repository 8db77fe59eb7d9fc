package candidates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyNote is returned when a note has no content.
var ErrEmptyNote = errors.New("note content is empty")

type Note struct {
	ID          int64
	CandidateID int64
	Content     string
	CreatedAt   time.Time
}

func (s *Store) AddNote(ctx context.Context, candidateID int64, content string) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, ErrEmptyNote
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO candidate_notes (candidate_id, content, created_at) VALUES (?, ?, ?)`,
		candidateID, content, now())
	if err != nil {
		return 0, fmt.Errorf("adding note: %w", err)
	}
	return res.LastInsertId()
}

// Notes lists a candidate's notes newest first. A limit of zero returns all.
func (s *Store) Notes(ctx context.Context, candidateID int64, limit int) ([]Note, error) {
	q := `SELECT id, candidate_id, content, created_at FROM candidate_notes
		WHERE candidate_id = ? ORDER BY created_at DESC, id DESC`
	args := []interface{}{candidateID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var (
			n         Note
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.CandidateID, &n.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) DeleteNote(ctx context.Context, noteID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidate_notes WHERE id = ?`, noteID)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %d: %w", noteID, ErrNotFound)
	}
	return nil
}

func (s *Store) NoteCount(ctx context.Context, candidateID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candidate_notes WHERE candidate_id = ?`, candidateID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return n, nil
}

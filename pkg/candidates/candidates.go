package candidates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	ParserSuccess = "success"
	ParserFailed  = "failed"
)

type Candidate struct {
	ID               int64
	Name             string
	PositionID       int64
	FileName         string
	OriginalFilePath string
	HRTag            string
	HRNote           string
	HRTaggedAt       time.Time
	ParserStatus     string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const candidateColumns = `id, name, position_id, file_name, original_file_path, hr_tag, hr_note,
	hr_tagged_at, parser_status, error_message, created_at, updated_at`

// SaveCandidate inserts c and returns its ID. An empty ParserStatus is stored as success.
func (s *Store) SaveCandidate(ctx context.Context, c *Candidate) (int64, error) {
	if c.ParserStatus == "" {
		c.ParserStatus = ParserSuccess
	}

	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (name, position_id, file_name, original_file_path,
			parser_status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.PositionID, c.FileName, nullString(c.OriginalFilePath),
		c.ParserStatus, nullString(c.ErrorMessage), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("saving candidate: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("saving candidate: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *Store) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("candidate %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting candidate: %w", err)
	}
	return c, nil
}

// ListByPosition returns a position's candidates, newest first.
func (s *Store) ListByPosition(ctx context.Context, positionID int64) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE position_id = ? ORDER BY id DESC`, positionID)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SetHRTag records a recruiter's tag and note on a candidate.
func (s *Store) SetHRTag(ctx context.Context, id int64, tag, note string) error {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET hr_tag = ?, hr_note = ?, hr_tagged_at = ?, updated_at = ? WHERE id = ?`,
		nullString(tag), nullString(note), ts, ts, id)
	if err != nil {
		return fmt.Errorf("tagging candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("candidate %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteByPosition removes every candidate of a position and their notes.
func (s *Store) DeleteByPosition(ctx context.Context, positionID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE position_id = ?`, positionID)
	if err != nil {
		return 0, fmt.Errorf("deleting candidates: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*Candidate, error) {
	var (
		c                                   Candidate
		originalPath, tag, note, errMessage sql.NullString
		taggedAt                            sql.NullString
		createdAt, updatedAt                string
	)
	err := row.Scan(&c.ID, &c.Name, &c.PositionID, &c.FileName, &originalPath, &tag, &note,
		&taggedAt, &c.ParserStatus, &errMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.OriginalFilePath = originalPath.String
	c.HRTag = tag.String
	c.HRNote = note.String
	c.HRTaggedAt = parseNullableTime(taggedAt)
	c.ErrorMessage = errMessage.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

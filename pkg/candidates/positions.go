package candidates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "deleted"
)

type Position struct {
	ID          int64
	Name        string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func validStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusDeleted:
		return true
	}
	return false
}

// CreatePosition stores a new active position and returns its ID.
func (s *Store) CreatePosition(ctx context.Context, name, description string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("position name is required")
	}

	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (name, description, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, strings.TrimSpace(description), StatusActive, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("creating position: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetPosition(ctx context.Context, id int64) (*Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, created_at, updated_at FROM positions WHERE id = ?`, id)

	var (
		p                    Position
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting position: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ListPositions returns positions with the given status, or every
// non-deleted position when status is empty.
func (s *Store) ListPositions(ctx context.Context, status string) ([]Position, error) {
	q := `SELECT id, name, description, status, created_at, updated_at FROM positions`
	var args []interface{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	} else {
		q += ` WHERE status != ?`
		args = append(args, StatusDeleted)
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var (
			p                    Position
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *Store) SetPositionStatus(ctx context.Context, id int64, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("invalid position status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE positions SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	if err != nil {
		return fmt.Errorf("updating position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("position %d: %w", id, ErrNotFound)
	}
	return nil
}

package sessions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/echo-sphere/backend/internal/models"
)

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts a session.
func (r *Repository) Save(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (id, room_name, user_id, status, created_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at`
	_, err := r.pool.Exec(ctx, q, s.ID, s.RoomName, s.UserID, s.Status, s.CreatedAt, s.StartedAt, s.EndedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetByID returns a session, or nil when no row matches.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, room_name, user_id, status, created_at, started_at, ended_at
		FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.RoomName, &s.UserID, &s.Status, &s.CreatedAt, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// GetByRoomName returns the most recent session for a room, or nil.
func (r *Repository) GetByRoomName(ctx context.Context, roomName string) (*models.Session, error) {
	const q = `SELECT id, room_name, user_id, status, created_at, started_at, ended_at
		FROM sessions WHERE room_name = $1 ORDER BY created_at DESC LIMIT 1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, roomName).Scan(&s.ID, &s.RoomName, &s.UserID, &s.Status, &s.CreatedAt, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by room: %w", err)
	}
	return &s, nil
}

// ListActive returns sessions currently in the active status.
func (r *Repository) ListActive(ctx context.Context, limit int) ([]models.Session, error) {
	const q = `SELECT id, room_name, user_id, status, created_at, started_at, ended_at
		FROM sessions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, models.SessionStatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.RoomName, &s.UserID, &s.Status, &s.CreatedAt, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

package recordings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/echo-sphere/backend/internal/models"
)

const recordingColumns = `id, session_id, egress_id, status, storage_bucket, storage_path,
	COALESCE(playlist_url,''), COALESCE(duration_seconds,0), COALESCE(file_size_bytes,0),
	COALESCE(error_message,''), created_at, updated_at, started_at, ended_at`

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts a recording: insert on a new id, otherwise update the mutable
// fields.
func (r *Repository) Save(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings
		(id, session_id, egress_id, status, storage_bucket, storage_path, playlist_url,
		 duration_seconds, file_size_bytes, error_message, created_at, updated_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8, $9, NULLIF($10,''), $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			egress_id = EXCLUDED.egress_id,
			status = EXCLUDED.status,
			playlist_url = EXCLUDED.playlist_url,
			duration_seconds = EXCLUDED.duration_seconds,
			file_size_bytes = EXCLUDED.file_size_bytes,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at`
	_, err := r.pool.Exec(ctx, q,
		rec.ID, rec.SessionID, rec.EgressID, string(rec.Status), rec.StorageBucket, rec.StoragePath,
		rec.PlaylistURL, rec.DurationSeconds, rec.FileSizeBytes, rec.ErrorMessage,
		rec.CreatedAt, rec.UpdatedAt, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}

// GetByID returns a recording, or nil when no row matches.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	return r.queryOne(ctx, q, id)
}

// GetBySessionID returns the most recently created recording for a session,
// or nil when the session has none.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.queryOne(ctx, q, sessionID)
}

// GetByEgressID returns the recording tracking an egress job, or nil.
func (r *Repository) GetByEgressID(ctx context.Context, egressID string) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE egress_id = $1`
	return r.queryOne(ctx, q, egressID)
}

// ListByStatus returns recordings in a given status, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status models.RecordingStatus, limit, offset int) ([]models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list recordings by status: %w", err)
	}
	defer rows.Close()
	return scanRecordings(rows)
}

// ListAll returns one page of recordings (newest first) and the total count.
func (r *Repository) ListAll(ctx context.Context, page, pageSize int) ([]models.Recording, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recordings: %w", err)
	}
	q := `SELECT ` + recordingColumns + ` FROM recordings
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, q, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	list, err := scanRecordings(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// CountByStatus returns the number of recordings in a given status.
func (r *Repository) CountByStatus(ctx context.Context, status models.RecordingStatus) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recordings WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recordings by status: %w", err)
	}
	return n, nil
}

func (r *Repository) queryOne(ctx context.Context, q string, arg any) (*models.Recording, error) {
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query recording: %w", err)
	}
	return rec, nil
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	var status string
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.EgressID, &status, &rec.StorageBucket, &rec.StoragePath,
		&rec.PlaylistURL, &rec.DurationSeconds, &rec.FileSizeBytes, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.StartedAt, &rec.EndedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = models.RecordingStatus(status)
	return &rec, nil
}

func scanRecordings(rows pgx.Rows) ([]models.Recording, error) {
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

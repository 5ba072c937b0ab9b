package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/gpstrack/internal/domain"
)

type CameraStore struct {
	db *sql.DB
}

func NewCameraStore(db *sql.DB) *CameraStore {
	return &CameraStore{db: db}
}

func (s *CameraStore) GetByID(ctx context.Context, id string) (*domain.Camera, error) {
	cam := &domain.Camera{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, token, created_at, updated_at FROM cameras WHERE id = ?
	`, id).Scan(&cam.ID, &cam.Name, &cam.Location, &cam.Token, &cam.CreatedAt, &cam.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}

	return cam, nil
}

// GetOrCreate returns the camera with id, inserting a bare record first if
// none exists. Concurrent callers for the same id all observe one row.
func (s *CameraStore) GetOrCreate(ctx context.Context, id string) (*domain.Camera, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cameras (id) VALUES (?) ON CONFLICT(id) DO NOTHING
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create camera: %w", err)
	}

	cam, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cam == nil {
		return nil, fmt.Errorf("camera %s vanished after insert", id)
	}
	return cam, nil
}

// Upsert creates or updates a camera's metadata. A nil token leaves an
// existing token untouched.
func (s *CameraStore) Upsert(ctx context.Context, id string, name, location, token *string) (*domain.Camera, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cameras (id, name, location, token) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			location   = excluded.location,
			token      = COALESCE(excluded.token, cameras.token),
			updated_at = datetime('now')
	`, id, name, location, token)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert camera: %w", err)
	}

	return s.GetByID(ctx, id)
}

// ReplaceToken sets the camera's token to next only if it currently equals
// current. It reports whether the swap happened.
func (s *CameraStore) ReplaceToken(ctx context.Context, id, current, next string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cameras SET token = ?, updated_at = datetime('now')
		WHERE id = ? AND token = ?
	`, next, id, current)
	if err != nil {
		return false, fmt.Errorf("failed to replace token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

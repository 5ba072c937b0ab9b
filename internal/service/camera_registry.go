package service

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/vbonduro/gpstrack/internal/config"
	"github.com/vbonduro/gpstrack/internal/domain"
)

// cameraRepository is the subset of store.CameraStore the registry requires.
type cameraRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Camera, error)
	GetOrCreate(ctx context.Context, id string) (*domain.Camera, error)
	Upsert(ctx context.Context, id string, name, location, token *string) (*domain.Camera, error)
	ReplaceToken(ctx context.Context, id, current, next string) (bool, error)
}

// cameraIDPattern keeps ids usable as a single path segment.
var cameraIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

// ValidateCameraID rejects ids that are empty, too long, or unsafe to use as
// a directory name.
func ValidateCameraID(id string) error {
	if id == "" {
		return domain.InvalidInput("Camera ID is required")
	}
	if !cameraIDPattern.MatchString(id) || id == "." || id == ".." {
		return domain.InvalidInput("Invalid camera ID %q", id)
	}
	return nil
}

type CameraRegistry struct {
	cameras cameraRepository
	logger  *slog.Logger
}

func NewCameraRegistry(cameras cameraRepository, logger *slog.Logger) *CameraRegistry {
	return &CameraRegistry{cameras: cameras, logger: logger}
}

// GetOrCreate returns the camera, registering a bare record on first sight.
func (r *CameraRegistry) GetOrCreate(ctx context.Context, camID string) (*domain.Camera, error) {
	if err := ValidateCameraID(camID); err != nil {
		return nil, err
	}

	cam, err := r.cameras.GetOrCreate(ctx, camID)
	if err != nil {
		return nil, domain.Storage("get or create camera", err)
	}
	return cam, nil
}

func (r *CameraRegistry) Find(ctx context.Context, camID string) (*domain.Camera, error) {
	cam, err := r.cameras.GetByID(ctx, camID)
	if err != nil {
		return nil, domain.Storage("find camera", err)
	}
	if cam == nil {
		return nil, domain.NotFound("Camera not found")
	}
	return cam, nil
}

// RotateToken replaces the camera's token with a fresh random one, provided
// presented matches the current token. The old token stops working at once.
func (r *CameraRegistry) RotateToken(ctx context.Context, camID, presented string) (string, error) {
	cam, err := r.Find(ctx, camID)
	if err != nil {
		return "", err
	}
	if presented == "" || !tokenMatches(cam.Token, presented) {
		return "", domain.Unauthorized("Invalid camera token")
	}

	next := uuid.NewString()
	swapped, err := r.cameras.ReplaceToken(ctx, camID, presented, next)
	if err != nil {
		return "", domain.Storage("replace token", err)
	}
	if !swapped {
		// Lost a race with another rotation.
		return "", domain.Unauthorized("Invalid camera token")
	}

	r.logger.Info("camera token rotated", "cam_id", camID)
	return next, nil
}

// Provision creates or updates a camera from an out-of-band seed. An empty
// seed token keeps the camera's current token.
func (r *CameraRegistry) Provision(ctx context.Context, seed config.CameraSeed) (*domain.Camera, error) {
	if err := ValidateCameraID(seed.ID); err != nil {
		return nil, err
	}

	cam, err := r.cameras.Upsert(ctx, seed.ID, optional(seed.Name), optional(seed.Location), optional(seed.Token))
	if err != nil {
		return nil, domain.Storage("provision camera", err)
	}
	r.logger.Info("camera provisioned", "cam_id", seed.ID, "has_token", cam.Token != nil)
	return cam, nil
}

func tokenMatches(stored *string, presented string) bool {
	if stored == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

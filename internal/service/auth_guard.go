package service

import (
	"context"

	"github.com/vbonduro/gpstrack/internal/domain"
)

// cameraFinder is the subset of store.CameraStore the guard requires.
type cameraFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Camera, error)
}

// Guard authenticates camera-scoped requests by the camera's shared token.
type Guard struct {
	cameras cameraFinder
}

func NewGuard(cameras cameraFinder) *Guard {
	return &Guard{cameras: cameras}
}

// Authorize returns nil only when camID names an existing camera whose token
// equals token. A camera without a token never authorizes.
func (g *Guard) Authorize(ctx context.Context, camID, token string) error {
	if camID == "" || token == "" {
		return domain.Unauthorized("Camera ID and token are required")
	}

	cam, err := g.cameras.GetByID(ctx, camID)
	if err != nil {
		return domain.Storage("authorize camera", err)
	}
	if cam == nil {
		return domain.Unauthorized("Camera not found")
	}
	if !tokenMatches(cam.Token, token) {
		return domain.Unauthorized("Invalid camera token")
	}
	return nil
}

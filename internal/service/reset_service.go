package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/vbonduro/gpstrack/internal/assetstore"
	"github.com/vbonduro/gpstrack/internal/domain"
)

// eventPurger is the subset of store.EventStore ResetService requires.
type eventPurger interface {
	DeleteByCamera(ctx context.Context, camID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ResetResult reports the outcome of a reset. Failures after authorization
// are reported here rather than as errors.
type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ResetService struct {
	events eventPurger
	assets assetstore.AssetStore
	secret string
	logger *slog.Logger
}

// NewResetService returns a ResetService guarded by secret. An empty secret
// disables ClearAll.
func NewResetService(events eventPurger, assets assetstore.AssetStore, secret string, logger *slog.Logger) *ResetService {
	return &ResetService{events: events, assets: assets, secret: secret, logger: logger}
}

// ClearAll deletes every detection record and every stored image. Camera
// records are kept.
func (s *ResetService) ClearAll(ctx context.Context, secret string) (ResetResult, error) {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(s.secret), []byte(secret)) != 1 {
		s.logger.Warn("clear all rejected")
		return ResetResult{}, domain.Unauthorized("Invalid password")
	}

	n, err := s.events.DeleteAll(ctx)
	if err != nil {
		return s.failed("Failed to clear data", err), nil
	}
	if err := s.assets.DeleteAll(ctx); err != nil {
		return s.failed("Failed to clear data", err), nil
	}

	s.logger.Warn("all detection data cleared", "events", n)
	return ResetResult{Success: true, Message: "All data and images cleared successfully"}, nil
}

// ClearCamera deletes one camera's detection records and images. A camera
// with nothing stored still succeeds.
func (s *ResetService) ClearCamera(ctx context.Context, camID string) (ResetResult, error) {
	if err := ValidateCameraID(camID); err != nil {
		return ResetResult{}, err
	}

	n, err := s.events.DeleteByCamera(ctx, camID)
	if err != nil {
		return s.failed("Failed to clear camera data", err), nil
	}
	if err := s.assets.DeleteCamera(ctx, camID); err != nil {
		return s.failed("Failed to clear camera data", err), nil
	}

	s.logger.Info("camera data cleared", "cam_id", camID, "events", n)
	return ResetResult{
		Success: true,
		Message: fmt.Sprintf("Data and images for camera %s cleared successfully", camID),
	}, nil
}

// failed logs err and reports msg alone; causes stay server side.
func (s *ResetService) failed(msg string, err error) ResetResult {
	s.logger.Error(msg, "error", err)
	return ResetResult{Success: false, Message: msg}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/gpstrack/internal/assetstore"
	"github.com/vbonduro/gpstrack/internal/domain"
)

// eventRepository is the subset of store.EventStore DetectionService requires.
type eventRepository interface {
	CreateWithObjects(ctx context.Context, camID string, ts time.Time, imgPath string, objects []domain.DetectedObject) (*domain.DetectionEvent, error)
	ListSince(ctx context.Context, camID string, since time.Time) ([]*domain.DetectionEvent, error)
}

// Publisher fans a detection out to everyone watching a camera. It must not
// block on slow receivers and reports how many were reached.
type Publisher interface {
	Publish(camID string, payload any) int
}

type DetectionOptions struct {
	// RecentWindow bounds RecentDetections; zero means 24h.
	RecentWindow time.Duration
	// FileURLPrefix is prepended to asset paths to form public URLs,
	// e.g. "/api/files".
	FileURLPrefix string
}

// SubmitRequest is one camera report. Timestamp must be RFC 3339 with a zone.
type SubmitRequest struct {
	CamID        string
	Image        []byte
	OriginalName string
	Timestamp    string
	Objects      []domain.ObjectReport
}

type DetectionService struct {
	registry  *CameraRegistry
	events    eventRepository
	assets    assetstore.AssetStore
	publisher Publisher
	logger    *slog.Logger
	opts      DetectionOptions
	now       func() time.Time
}

func NewDetectionService(
	registry *CameraRegistry,
	events eventRepository,
	assets assetstore.AssetStore,
	publisher Publisher,
	logger *slog.Logger,
	opts DetectionOptions,
) *DetectionService {
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 24 * time.Hour
	}
	opts.FileURLPrefix = strings.TrimSuffix(opts.FileURLPrefix, "/")
	return &DetectionService{
		registry:  registry,
		events:    events,
		assets:    assets,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Submit validates a report, stores its image, resolves the camera and
// records the detection, then broadcasts the result on the camera's topic.
// Nothing is written when validation or image processing fails. If a later
// step fails, the stored image is removed again.
func (s *DetectionService) Submit(ctx context.Context, req SubmitRequest) (*domain.DetectionResult, error) {
	ts, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	asset, err := s.assets.Save(ctx, req.CamID, req.Image)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, domain.InvalidInput("Image could not be processed")
		}
		return nil, domain.Storage("save image", err)
	}

	cam, err := s.registry.GetOrCreate(ctx, req.CamID)
	if err != nil {
		s.removeOrphan(ctx, req.CamID, asset.Path)
		return nil, err
	}

	objects := make([]domain.DetectedObject, len(req.Objects))
	for i, o := range req.Objects {
		objects[i] = o.Detected()
	}

	event, err := s.events.CreateWithObjects(ctx, req.CamID, ts, asset.Path, objects)
	if err != nil {
		s.removeOrphan(ctx, req.CamID, asset.Path)
		return nil, domain.Storage("record detection", err)
	}

	result := &domain.DetectionResult{
		EventID:   event.ID,
		CamID:     req.CamID,
		Camera:    cam,
		Objects:   req.Objects,
		Timestamp: ts,
		Image: domain.ImageInfo{
			Filename:     asset.FileName,
			OriginalName: req.OriginalName,
			MimeType:     asset.MimeType,
			Size:         asset.Size,
			Path:         asset.Path,
			URL:          s.FileURL(asset.Path),
		},
	}
	if result.Objects == nil {
		result.Objects = []domain.ObjectReport{}
	}

	delivered := s.publisher.Publish(req.CamID, result)
	s.logger.Info("detection recorded",
		"cam_id", req.CamID,
		"event_id", event.ID,
		"objects", len(objects),
		"img_path", asset.Path,
		"subscribers", delivered,
	)
	return result, nil
}

// removeOrphan deletes an image whose detection was not recorded.
func (s *DetectionService) removeOrphan(ctx context.Context, camID, path string) {
	if err := s.assets.Delete(ctx, path); err != nil {
		s.logger.Error("failed to remove orphaned image", "cam_id", camID, "img_path", path, "error", err)
	}
}

func (s *DetectionService) validate(req SubmitRequest) (time.Time, error) {
	if err := ValidateCameraID(req.CamID); err != nil {
		return time.Time{}, err
	}
	if len(req.Image) == 0 {
		return time.Time{}, domain.InvalidInput("Image file is required")
	}
	if req.Timestamp == "" {
		return time.Time{}, domain.InvalidInput("Timestamp is required")
	}
	ts, err := time.Parse(time.RFC3339Nano, req.Timestamp)
	if err != nil {
		return time.Time{}, domain.InvalidInput("Timestamp must be RFC 3339 with a time zone")
	}
	if req.Objects == nil {
		return time.Time{}, domain.InvalidInput("Objects are required")
	}
	for i, o := range req.Objects {
		if err := o.Validate(); err != nil {
			return time.Time{}, fmt.Errorf("object %d: %w", i, err)
		}
	}
	return ts, nil
}

// RecentDetections lists the camera's events inside the recent window,
// newest first.
func (s *DetectionService) RecentDetections(ctx context.Context, camID string) ([]*domain.DetectionEvent, error) {
	cam, err := s.registry.Find(ctx, camID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListSince(ctx, camID, s.now().Add(-s.opts.RecentWindow))
	if err != nil {
		return nil, domain.Storage("list detections", err)
	}
	for _, ev := range events {
		ev.Camera = cam
	}
	return events, nil
}

func (s *DetectionService) CameraInfo(ctx context.Context, camID string) (*domain.Camera, error) {
	return s.registry.Find(ctx, camID)
}

// FileURL returns the public URL an asset path is served under.
func (s *DetectionService) FileURL(path string) string {
	return s.opts.FileURLPrefix + "/" + path
}

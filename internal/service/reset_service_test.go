package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/gpstrack/internal/domain"
)

func seedDetections(t *testing.T, f *fixture, camIDs ...string) {
	t.Helper()
	for _, id := range camIDs {
		req := validRequest(t)
		req.CamID = id
		_, err := f.svc.Submit(context.Background(), req)
		require.NoError(t, err)
	}
}

func TestResetServiceClearAll(t *testing.T) {
	f := newFixture(t)
	seedDetections(t, f, "cam-1", "cam-2")
	reset := NewResetService(f.events, f.assets, "s3cret", slog.Default())

	res, err := reset.ClearAll(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "All data and images cleared successfully", res.Message)

	assert.Zero(t, f.count(t, "detection_events"))
	assert.Zero(t, f.count(t, "detected_objects"))
	assert.Zero(t, f.assets.count())
	assert.Equal(t, 2, f.count(t, "cameras"), "cameras survive a reset")
}

func TestResetServiceClearAllWrongSecret(t *testing.T) {
	f := newFixture(t)
	seedDetections(t, f, "cam-1")
	reset := NewResetService(f.events, f.assets, "s3cret", slog.Default())

	_, err := reset.ClearAll(context.Background(), "guess")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.EqualError(t, err, "Invalid password")

	assert.Equal(t, 1, f.count(t, "detection_events"))
	assert.Equal(t, 1, f.assets.count())
}

func TestResetServiceClearAllDisabledWithoutSecret(t *testing.T) {
	f := newFixture(t)
	reset := NewResetService(f.events, f.assets, "", slog.Default())

	_, err := reset.ClearAll(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResetServiceClearAllAssetFailure(t *testing.T) {
	f := newFixture(t)
	seedDetections(t, f, "cam-1")
	f.assets.deleteErr = errors.New("remove /var/lib/gpstrack/uploads/cam-1: permission denied")
	reset := NewResetService(f.events, f.assets, "s3cret", slog.Default())

	res, err := reset.ClearAll(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Failed to clear data", res.Message)
	assert.NotContains(t, res.Message, "/var/lib")
}

func TestResetServiceClearCamera(t *testing.T) {
	f := newFixture(t)
	seedDetections(t, f, "cam-1", "cam-1", "cam-2")
	reset := NewResetService(f.events, f.assets, "s3cret", slog.Default())

	res, err := reset.ClearCamera(context.Background(), "cam-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Data and images for camera cam-1 cleared successfully", res.Message)

	assert.Equal(t, 1, f.count(t, "detection_events"))
	assert.Equal(t, 1, f.assets.count())

	// Clearing again is harmless.
	res, err = reset.ClearCamera(context.Background(), "cam-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestResetServiceClearCameraInvalidID(t *testing.T) {
	f := newFixture(t)
	reset := NewResetService(f.events, f.assets, "s3cret", slog.Default())

	_, err := reset.ClearCamera(context.Background(), "..")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResetServiceClearCameraAssetFailure(t *testing.T) {
	f := newFixture(t)
	seedDetections(t, f, "cam-1")
	f.assets.deleteErr = errors.New("permission denied")
	reset := NewResetService(f.events, f.assets, "s3cret", slog.Default())

	res, err := reset.ClearCamera(context.Background(), "cam-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Failed to clear camera data", res.Message)
}

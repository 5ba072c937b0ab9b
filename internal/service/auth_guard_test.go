package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/gpstrack/internal/config"
	"github.com/vbonduro/gpstrack/internal/domain"
)

type brokenFinder struct{}

func (brokenFinder) GetByID(context.Context, string) (*domain.Camera, error) {
	return nil, errors.New("database is locked")
}

func TestGuardAuthorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.registry.Provision(ctx, config.CameraSeed{ID: "cam-1", Token: "abc"})
	require.NoError(t, err)
	_, err = f.registry.GetOrCreate(ctx, "cam-bare")
	require.NoError(t, err)

	guard := NewGuard(f.cameras)

	tests := []struct {
		name    string
		camID   string
		token   string
		wantErr string
	}{
		{name: "valid", camID: "cam-1", token: "abc"},
		{name: "missing token", camID: "cam-1", token: "", wantErr: "Camera ID and token are required"},
		{name: "missing camera id", camID: "", token: "abc", wantErr: "Camera ID and token are required"},
		{name: "unknown camera", camID: "ghost", token: "abc", wantErr: "Camera not found"},
		{name: "wrong token", camID: "cam-1", token: "abd", wantErr: "Invalid camera token"},
		{name: "camera without token", camID: "cam-bare", token: "abc", wantErr: "Invalid camera token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Authorize(ctx, tt.camID, tt.token)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestGuardAuthorizeStorageFailure(t *testing.T) {
	err := NewGuard(brokenFinder{}).Authorize(context.Background(), "cam-1", "abc")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

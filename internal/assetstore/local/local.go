package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/gpstrack/internal/assetstore"
	"github.com/vbonduro/gpstrack/internal/domain"
	"github.com/vbonduro/gpstrack/internal/imaging"
)

// fileNameAttempts bounds retries when a generated name already exists.
const fileNameAttempts = 5

type LocalAssetStore struct {
	basePath   string
	normalizer *imaging.Normalizer
	logger     *slog.Logger
}

func NewLocalAssetStore(basePath string, normalizer *imaging.Normalizer, logger *slog.Logger) (*LocalAssetStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &LocalAssetStore{basePath: basePath, normalizer: normalizer, logger: logger}, nil
}

func (s *LocalAssetStore) Save(ctx context.Context, camID string, data []byte) (assetstore.Asset, error) {
	normalized, err := s.normalizer.Normalize(data)
	if err != nil {
		return assetstore.Asset{}, err
	}

	dir, err := s.safeJoin(camID)
	if err != nil {
		return assetstore.Asset{}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return assetstore.Asset{}, fmt.Errorf("%w: failed to create camera directory: %v", domain.ErrStorage, err)
	}

	for range fileNameAttempts {
		name := newFileName()
		filePath := filepath.Join(dir, name)

		f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return assetstore.Asset{}, fmt.Errorf("%w: failed to create file: %v", domain.ErrStorage, err)
		}

		if _, err := f.Write(normalized); err != nil {
			if cerr := f.Close(); cerr != nil {
				s.logger.Error("failed to close file after write error", "error", cerr)
			}
			s.removeQuietly(filePath)
			return assetstore.Asset{}, fmt.Errorf("%w: failed to write file: %v", domain.ErrStorage, err)
		}
		if err := f.Close(); err != nil {
			s.removeQuietly(filePath)
			return assetstore.Asset{}, fmt.Errorf("%w: failed to close file: %v", domain.ErrStorage, err)
		}

		return assetstore.Asset{
			Path:     assetstore.JoinPath(camID, name),
			FileName: name,
			MimeType: imaging.MimeType,
			Size:     int64(len(normalized)),
		}, nil
	}
	return assetstore.Asset{}, fmt.Errorf("%w: no free file name after %d attempts", domain.ErrStorage, fileNameAttempts)
}

func (s *LocalAssetStore) Exists(ctx context.Context, path string) (bool, error) {
	filePath, err := s.safeJoin(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to stat file: %v", domain.ErrStorage, err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *LocalAssetStore) Read(ctx context.Context, path string) ([]byte, error) {
	filePath, err := s.safeJoin(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: asset %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: failed to read file: %v", domain.ErrStorage, err)
	}
	return data, nil
}

func (s *LocalAssetStore) Delete(ctx context.Context, path string) error {
	filePath, err := s.safeJoin(path)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete file: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *LocalAssetStore) DeleteCamera(ctx context.Context, camID string) error {
	dir, err := s.safeJoin(camID)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: failed to delete camera directory: %v", domain.ErrStorage, err)
	}
	return nil
}

// DeleteAll empties the store root but keeps the root directory itself.
func (s *LocalAssetStore) DeleteAll(ctx context.Context) error {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: failed to list asset directory: %v", domain.ErrStorage, err)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.basePath, entry.Name())); err != nil {
			return fmt.Errorf("%w: failed to delete %s: %v", domain.ErrStorage, entry.Name(), err)
		}
	}
	return nil
}

func (s *LocalAssetStore) removeQuietly(filePath string) {
	if err := os.Remove(filePath); err != nil {
		s.logger.Error("failed to remove partial file", "path", filePath, "error", err)
	}
}

// safeJoin resolves rel relative to basePath and rejects anything that does
// not land strictly inside it.
func (s *LocalAssetStore) safeJoin(rel string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base path: %v", domain.ErrStorage, err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("%w: invalid path: %v", domain.ErrInvalidInput, err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes asset root", domain.ErrInvalidInput)
	}
	return absPath, nil
}

// newFileName returns a short random name such as "3f2a9c0b71de.jpg".
func newFileName() string {
	id := uuid.New()
	return fmt.Sprintf("%x%s", id[:6], imaging.Ext)
}

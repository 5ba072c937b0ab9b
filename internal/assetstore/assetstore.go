package assetstore

import (
	"context"
	"path/filepath"
	"strings"
)

// Asset describes a stored image. Path is relative to the store root and has
// the form "<camId>/<fileName>".
type Asset struct {
	Path     string
	FileName string
	MimeType string
	Size     int64
}

// AssetStore persists camera images grouped by camera id.
type AssetStore interface {
	// Save normalizes data and stores it under camID.
	Save(ctx context.Context, camID string, data []byte) (Asset, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Read returns domain.ErrNotFound when nothing is stored at path.
	Read(ctx context.Context, path string) ([]byte, error)
	// Delete is a no-op when path does not exist.
	Delete(ctx context.Context, path string) error
	DeleteCamera(ctx context.Context, camID string) error
	DeleteAll(ctx context.Context) error
}

// JoinPath builds the relative path of a file belonging to camID.
func JoinPath(camID, fileName string) string {
	return camID + "/" + fileName
}

// ContentType maps a file name's extension to the MIME type it is served with.
func ContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

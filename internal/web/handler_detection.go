package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/gpstrack/internal/domain"
	"github.com/vbonduro/gpstrack/internal/service"
)

// allowedImageTypes is the set of MIME types accepted for uploaded images.
// net/http.DetectContentType sniffs JPEG, PNG, and GIF; it has no WebP
// signature, so isWebP covers that format.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// objectsFromForm accepts either one "objects" field holding a JSON array or
// several "objects" fields each holding one JSON object.
func objectsFromForm(values []string) ([]domain.ObjectReport, error) {
	switch len(values) {
	case 0:
		return nil, domain.InvalidInput("Objects are required")
	case 1:
		return domain.DecodeObjectReports([]byte(values[0]))
	}

	reports := make([]domain.ObjectReport, 0, len(values))
	for _, v := range values {
		batch, err := domain.DecodeObjectReports([]byte(v))
		if err != nil {
			return nil, err
		}
		reports = append(reports, batch...)
	}
	return reports, nil
}

func (s *Server) handleSubmitDetection(w http.ResponseWriter, r *http.Request) {
	camID := r.PathValue("camId")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, domain.InvalidInput("Upload exceeds %d bytes", s.maxUpload))
			return
		}
		s.writeError(w, r, domain.InvalidInput("Expected a multipart form"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, r, domain.InvalidInput("Image file is required"))
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, domain.Storage("read upload", err))
		return
	}

	if _, ok := allowedImageMIME(imageData); !ok {
		s.writeError(w, r, domain.InvalidInput("Unsupported image format"))
		return
	}

	objects, err := objectsFromForm(r.MultipartForm.Value["objects"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.detections.Submit(r.Context(), service.SubmitRequest{
		CamID:        camID,
		Image:        imageData,
		OriginalName: header.Filename,
		Timestamp:    r.FormValue("timestamp"),
		Objects:      objects,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Message: "Object detection data processed and broadcasted",
		Data:    result,
	})
}

func (s *Server) handleRecentDetections(w http.ResponseWriter, r *http.Request) {
	events, err := s.detections.RecentDetections(r.Context(), r.PathValue("camId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: events})
}

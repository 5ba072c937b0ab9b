package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/vbonduro/gpstrack/internal/assetstore"
)

// handleGetFile serves a stored image. Every failure, including a bad path,
// is answered with 404 so the store layout is not disclosed.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	camID := r.PathValue("camId")
	fileName := r.PathValue("fileName")

	data, err := s.assets.Read(r.Context(), assetstore.JoinPath(camID, fileName))
	if err != nil {
		s.logger.Debug("file not served", "cam_id", camID, "file", fileName, "error", err)
		writeJSON(w, http.StatusNotFound, apiResponse{Success: false, Message: "File not found"})
		return
	}

	h := w.Header()
	h.Set("Content-Type", assetstore.ContentType(fileName))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fileName))
	h.Set("Cache-Control", "public, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write file failed", "cam_id", camID, "file", fileName, "error", err)
	}
}

package web

import (
	"net/http"
)

type rotateTokenRequest struct {
	Token string `json:"token"`
}

type rotateTokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

func (s *Server) handleCameraInfo(w http.ResponseWriter, r *http.Request) {
	cam, err := s.detections.CameraInfo(r.Context(), r.PathValue("camId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: cam})
}

// handleRotateToken is not behind requireCamera: the current token travels
// in the body and is checked by the registry.
func (s *Server) handleRotateToken(w http.ResponseWriter, r *http.Request) {
	var req rotateTokenRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.registry.RotateToken(r.Context(), r.PathValue("camId"), req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rotateTokenResponse{
		Success: true,
		Token:   token,
		Message: "Token regenerated successfully",
	})
}

package web

import (
	"net/http"

	"github.com/vbonduro/gpstrack/internal/service"
)

type clearAllRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	var req clearAllRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.reset.ClearAll(r.Context(), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeResetResult(w, res)
}

func (s *Server) handleClearCamera(w http.ResponseWriter, r *http.Request) {
	res, err := s.reset.ClearCamera(r.Context(), r.PathValue("camId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeResetResult(w, res)
}

func writeResetResult(w http.ResponseWriter, res service.ResetResult) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

package web

import (
	"net/http"

	"github.com/vbonduro/gpstrack/internal/hub"
)

// handleWebsocket upgrades to the real-time channel. Viewers are not
// authenticated; they choose cameras with subscribe_camera.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := hub.NewClient(s.hub, conn, s.logger)
	client.Run()
}

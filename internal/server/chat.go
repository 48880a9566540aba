package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/storefront/pkg/broadcast"
	"github.com/dmitrymomot/storefront/pkg/logger"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	if clientID == "" {
		writeError(w, r, s.log, badRequest("client_id is required"))
		return
	}

	// The upgrader has already answered the client when the handshake fails.
	if err := s.room.Join(r.Context(), broadcast.Upgrade(w, r, clientID, s.wsOpts...)); err != nil {
		s.log.DebugContext(r.Context(), "chat session ended", logger.ClientID(clientID), logger.Error(err))
	}
}

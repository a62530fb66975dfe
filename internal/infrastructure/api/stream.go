package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"storepulse-shopify-core/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
)

// handleSyncStream streams one store's sync lifecycle notifications as
// server-sent events. The subscription lives for the request; closing the
// connection cancels the request context, which tears the channel down.
func (s *Server) handleSyncStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	storeID := chi.URLParam(r, "storeId")
	channel := s.notices.Subscribe(r.Context(), &pubsub.SyncNoticeFilter{StoreID: storeID})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Info().Str("storeId", storeID).Str("channelId", channel.ID).Msg("Sync stream opened")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info().Str("storeId", storeID).Str("channelId", channel.ID).Msg("Sync stream closed")
			return
		case notice, open := <-channel.Notices:
			if !open {
				return
			}
			data, err := json.Marshal(notice)
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to encode sync notice")
				continue
			}
			fmt.Fprintf(w, "event: sync\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

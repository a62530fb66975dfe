// Package api exposes the service over REST.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"storepulse-shopify-core/internal/application"
	"storepulse-shopify-core/internal/domain"
	"storepulse-shopify-core/internal/infrastructure/pubsub"

	"github.com/rs/zerolog"
)

// Server holds the application services the REST handlers delegate to.
type Server struct {
	connections *application.ConnectionService
	sync        *application.SyncService
	analytics   *application.AnalyticsService
	health      *application.HealthService
	notices     *pubsub.SyncPubSub
	logger      zerolog.Logger
}

// NewServer creates the REST handler set.
func NewServer(
	connections *application.ConnectionService,
	sync *application.SyncService,
	analytics *application.AnalyticsService,
	health *application.HealthService,
	notices *pubsub.SyncPubSub,
	logger zerolog.Logger,
) *Server {
	return &Server{
		connections: connections,
		sync:        sync,
		analytics:   analytics,
		health:      health,
		notices:     notices,
		logger:      logger,
	}
}

// connectionResponse is the API view of a connection. Credentials never
// leave the service; only their presence is reported.
type connectionResponse struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id"`
	Provider      string                  `json:"provider"`
	Status        domain.ConnectionStatus `json:"status"`
	Domain        string                  `json:"domain"`
	HasCredential bool                    `json:"has_credential"`
	Webhooks      []domain.Webhook        `json:"webhooks"`
	Meta          domain.ConnectionMeta   `json:"meta"`
	CreatedAt     string                  `json:"created_at"`
	UpdatedAt     string                  `json:"updated_at"`
	LastSyncAt    string                  `json:"last_sync_at,omitempty"`
}

func toConnectionResponse(conn *domain.Connection) connectionResponse {
	resp := connectionResponse{
		ID:            conn.ID,
		UserID:        conn.UserID,
		Provider:      conn.Provider,
		Status:        conn.Status,
		Domain:        conn.Domain,
		HasCredential: conn.HasCredential(),
		Webhooks:      conn.Webhooks,
		Meta:          conn.Meta,
		CreatedAt:     conn.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     conn.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if conn.LastSyncAt != nil {
		resp.LastSyncAt = conn.LastSyncAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "internal server error"

	var coded *domain.CodedError
	if errors.As(err, &coded) {
		code = coded.Code
		message = coded.Message
		switch coded.Code {
		case domain.CodeNotFound:
			status = http.StatusNotFound
		case domain.CodeDuplicateConnection, domain.CodeInvalidState, domain.CodeSyncInProgress:
			status = http.StatusConflict
		case domain.CodeLimitExceeded:
			status = http.StatusForbidden
		case domain.CodeNotConnected, domain.CodeValidation:
			status = http.StatusBadRequest
		case domain.CodeUpstreamError:
			status = http.StatusBadGateway
		}
	} else {
		s.logger.Error().Err(err).Msg("Unhandled error in request")
	}

	s.writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

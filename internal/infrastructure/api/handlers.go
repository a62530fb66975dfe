package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"storepulse-shopify-core/internal/application"
	"storepulse-shopify-core/internal/domain"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the REST routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/connections", func(r chi.Router) {
		r.Post("/", s.handleConnect)
		r.Get("/", s.handleListConnections)
		r.Get("/domain/{domain}", s.handleGetConnectionByDomain)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetConnection)
			r.Delete("/", s.handleDisconnect)
			r.Post("/reconnect", s.handleReconnect)
			r.Post("/webhooks", s.handleAddWebhook)
			r.Delete("/webhooks/{webhookId}", s.handleRemoveWebhook)
		})
	})

	r.Route("/stores/{storeId}", func(r chi.Router) {
		r.Post("/sync", s.handleSyncStore)
		r.Get("/sync/stream", s.handleSyncStream)
		r.Get("/metrics", s.handleStoreMetrics)
		r.Get("/products/{productId}/metrics", s.handleProductMetrics)
		r.Get("/health", s.handleStoreHealth)
		r.Get("/quality", s.handleStoreQuality)
		r.Get("/report", s.handleStoreReport)
	})
}

type connectRequest struct {
	UserID     string                `json:"user_id"`
	Provider   string                `json:"provider"`
	Domain     string                `json:"domain"`
	Credential domain.Credential     `json:"credential"`
	Meta       domain.ConnectionMeta `json:"meta"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("invalid request body"))
		return
	}
	if req.UserID == "" || req.Domain == "" {
		s.writeError(w, domain.NewValidationError("user_id and domain are required"))
		return
	}
	if req.Provider == "" {
		req.Provider = "shopify"
	}

	ctx := r.Context()
	if err := s.connections.ValidateNewConnection(ctx, req.UserID, req.Provider, req.Domain, req.Meta.Plan); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.connections.Connect(ctx, toConnectInput(req))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	provider := r.URL.Query().Get("provider")

	var (
		conns []*domain.Connection
		err   error
	)
	switch {
	case user != "":
		conns, err = s.connections.ListByUser(r.Context(), user)
	case provider != "":
		conns, err = s.connections.ListByProvider(r.Context(), provider)
	default:
		s.writeError(w, domain.NewValidationError("user or provider query parameter is required"))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]connectionResponse, 0, len(conns))
	for _, conn := range conns {
		resp = append(resp, toConnectionResponse(conn))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.connections.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

func (s *Server) handleGetConnectionByDomain(w http.ResponseWriter, r *http.Request) {
	conn, err := s.connections.GetByDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.connections.Disconnect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("invalid request body"))
		return
	}

	conn, err := s.connections.Reconnect(r.Context(), chi.URLParam(r, "id"), toConnectInput(req))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

type addWebhookRequest struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

func (s *Server) handleAddWebhook(w http.ResponseWriter, r *http.Request) {
	var req addWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("invalid request body"))
		return
	}
	if req.Topic == "" || req.Address == "" {
		s.writeError(w, domain.NewValidationError("topic and address are required"))
		return
	}

	wh, err := s.connections.AddWebhook(r.Context(), chi.URLParam(r, "id"), req.Topic, req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, wh)
}

func (s *Server) handleRemoveWebhook(w http.ResponseWriter, r *http.Request) {
	err := s.connections.RemoveWebhook(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "webhookId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleSyncStore(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeId")
	if err := s.sync.SyncStore(r.Context(), storeID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"store_id": storeID,
		"status":   "completed",
	})
}

func (s *Server) handleStoreMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.analytics.StoreMetrics(r.Context(), chi.URLParam(r, "storeId"), queryDays(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleProductMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.analytics.ProductMetrics(r.Context(),
		chi.URLParam(r, "storeId"), chi.URLParam(r, "productId"), queryDays(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleStoreHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.PipelineHealth(r.Context(), chi.URLParam(r, "storeId"))
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleStoreQuality(w http.ResponseWriter, r *http.Request) {
	report, err := s.health.DataQuality(r.Context(), chi.URLParam(r, "storeId"), queryDays(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStoreReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.health.Report(r.Context(), chi.URLParam(r, "storeId"), queryDays(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func toConnectInput(req connectRequest) application.ConnectInput {
	return application.ConnectInput{
		UserID:     req.UserID,
		Provider:   req.Provider,
		Domain:     req.Domain,
		Credential: req.Credential,
		Meta:       req.Meta,
	}
}

func queryDays(r *http.Request) int {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return days
}

package application

import (
	"context"
	"fmt"
	"time"

	"storepulse-shopify-core/internal/domain"
	"storepulse-shopify-core/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// planAllowances maps a billing plan to the number of active connections it
// permits. Unknown plans get the free allowance.
var planAllowances = map[string]int{
	"free":  1,
	"basic": 3,
	"pro":   10,
}

const defaultAllowance = 1

// AllowanceForPlan returns the active-connection limit for a plan.
func AllowanceForPlan(plan string) int {
	if n, ok := planAllowances[plan]; ok {
		return n
	}
	return defaultAllowance
}

// ConnectionService owns the connection state machine, validation rules,
// and webhook bookkeeping for each storefront.
type ConnectionService struct {
	repo     ports.ConnectionRepository
	platform ports.PlatformClient
	logger   zerolog.Logger
}

// NewConnectionService creates a new connection service.
func NewConnectionService(
	repo ports.ConnectionRepository,
	platform ports.PlatformClient,
	logger zerolog.Logger,
) *ConnectionService {
	return &ConnectionService{
		repo:     repo,
		platform: platform,
		logger:   logger,
	}
}

// ConnectInput is the data captured from a completed authorization.
type ConnectInput struct {
	UserID     string
	Provider   string
	Domain     string
	Credential domain.Credential
	Meta       domain.ConnectionMeta
}

// ValidateNewConnection checks the duplicate and plan-limit rules before
// any credential exchange happens. Pure read, no side effects.
func (s *ConnectionService) ValidateNewConnection(ctx context.Context, userID, provider, shopDomain, plan string) error {
	conns, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list connections for user: %w", err)
	}

	active := 0
	for _, c := range conns {
		if !c.IsActive() {
			continue
		}
		active++
		if c.Domain == shopDomain {
			return domain.ErrDuplicateConnection
		}
	}

	if active >= AllowanceForPlan(plan) {
		return domain.ErrLimitExceeded
	}
	return nil
}

// Connect inserts a new connection in state connected with a freshly
// generated id and timestamps.
func (s *ConnectionService) Connect(ctx context.Context, input ConnectInput) (*domain.Connection, error) {
	now := time.Now()
	cred := input.Credential
	conn := &domain.Connection{
		ID:         uuid.NewString(),
		UserID:     input.UserID,
		Provider:   input.Provider,
		Status:     domain.StatusConnected,
		Domain:     input.Domain,
		Credential: &cred,
		Webhooks:   []domain.Webhook{},
		Meta:       input.Meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, conn); err != nil {
		s.logger.Error().Err(err).Str("domain", input.Domain).Msg("Failed to create connection")
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	s.logger.Info().
		Str("connectionId", conn.ID).
		Str("userId", input.UserID).
		Str("domain", input.Domain).
		Msg("Connection created")

	return conn, nil
}

// Disconnect tears down a connection. Every registered webhook removal is
// attempted; a single failure is logged and skipped, never fatal. After all
// attempts the connection is unconditionally moved to disconnected with the
// webhook list and credential cleared, so disconnect is always complete
// from the caller's perspective.
func (s *ConnectionService) Disconnect(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil {
		return nil, domain.NewNotFoundError("connection " + id)
	}

	for _, wh := range conn.Webhooks {
		if err := s.removePlatformWebhook(ctx, conn, wh); err != nil {
			s.logger.Warn().
				Err(err).
				Str("connectionId", conn.ID).
				Str("webhookId", wh.ID).
				Str("topic", wh.Topic).
				Msg("Webhook removal failed during disconnect, continuing")
		}
	}

	conn.Status = domain.StatusDisconnected
	conn.Webhooks = []domain.Webhook{}
	conn.Credential = nil
	conn.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to persist disconnect: %w", err)
	}

	s.logger.Info().Str("connectionId", conn.ID).Str("domain", conn.Domain).Msg("Connection disconnected")
	return conn, nil
}

// Reconnect re-activates a previously disconnected connection as a single
// atomic read-modify-write, so two concurrent reconnect attempts cannot
// both succeed from the same stale read.
func (s *ConnectionService) Reconnect(ctx context.Context, id string, input ConnectInput) (*domain.Connection, error) {
	updated, err := s.repo.UpdateIfStatus(ctx, id, domain.StatusDisconnected, func(c *domain.Connection) {
		cred := input.Credential
		c.Status = domain.StatusConnected
		c.Credential = &cred
		if input.Domain != "" {
			c.Domain = input.Domain
		}
		if input.Meta.Currency != "" {
			c.Meta.Currency = input.Meta.Currency
		}
		if input.Meta.Timezone != "" {
			c.Meta.Timezone = input.Meta.Timezone
		}
		if input.Meta.Plan != "" {
			c.Meta.Plan = input.Meta.Plan
		}
		c.UpdatedAt = time.Now()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("connectionId", id).Str("domain", updated.Domain).Msg("Connection reconnected")
	return updated, nil
}

// MarkExpired moves a connected storefront to expired when the platform
// reports its credential revoked.
func (s *ConnectionService) MarkExpired(ctx context.Context, id string) error {
	_, err := s.repo.UpdateIfStatus(ctx, id, domain.StatusConnected, func(c *domain.Connection) {
		c.Status = domain.StatusExpired
		c.UpdatedAt = time.Now()
	})
	if err != nil {
		return err
	}
	s.logger.Warn().Str("connectionId", id).Msg("Connection marked expired")
	return nil
}

// AddWebhook registers a webhook subscription with the platform and
// mirrors it into the connection's embedded list.
func (s *ConnectionService) AddWebhook(ctx context.Context, connectionID, topic, address string) (*domain.Webhook, error) {
	conn, err := s.repo.Get(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil {
		return nil, domain.NewNotFoundError("connection " + connectionID)
	}
	if !conn.HasCredential() {
		return nil, domain.ErrNotConnected
	}

	created, err := s.platform.CreateWebhook(ctx, conn.Domain, conn.Credential.AccessToken, topic, address)
	if err != nil {
		return nil, domain.NewUpstreamError("webhook create", err)
	}

	now := time.Now()
	wh := domain.Webhook{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		Topic:        topic,
		Address:      address,
		Status:       domain.WebhookActive,
		PlatformID:   int64(created.Id),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	conn.Webhooks = append(conn.Webhooks, wh)
	conn.UpdatedAt = now
	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to persist webhook: %w", err)
	}

	s.logger.Info().
		Str("connectionId", conn.ID).
		Str("webhookId", wh.ID).
		Str("topic", topic).
		Msg("Webhook registered")

	return &wh, nil
}

// RemoveWebhook de-registers a webhook from the platform and drops it from
// the connection's list. A transient failure while updating the embedded
// list is logged and returned without retry; the platform-side removal has
// already happened.
func (s *ConnectionService) RemoveWebhook(ctx context.Context, connectionID, webhookID string) error {
	conn, err := s.repo.Get(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil {
		return domain.NewNotFoundError("connection " + connectionID)
	}

	idx := -1
	for i, wh := range conn.Webhooks {
		if wh.ID == webhookID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.NewNotFoundError("webhook " + webhookID)
	}

	if err := s.removePlatformWebhook(ctx, conn, conn.Webhooks[idx]); err != nil {
		return domain.NewUpstreamError("webhook delete", err)
	}

	conn.Webhooks = append(conn.Webhooks[:idx], conn.Webhooks[idx+1:]...)
	conn.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, conn); err != nil {
		s.logger.Warn().
			Err(err).
			Str("connectionId", connectionID).
			Str("webhookId", webhookID).
			Msg("Webhook removed from platform but list update failed")
		return nil
	}

	s.logger.Info().Str("connectionId", connectionID).Str("webhookId", webhookID).Msg("Webhook removed")
	return nil
}

func (s *ConnectionService) removePlatformWebhook(ctx context.Context, conn *domain.Connection, wh domain.Webhook) error {
	if !conn.HasCredential() {
		return domain.ErrNotConnected
	}
	return s.platform.DeleteWebhook(ctx, conn.Domain, conn.Credential.AccessToken, wh.PlatformID)
}

// Get retrieves one connection by id.
func (s *ConnectionService) Get(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, domain.NewNotFoundError("connection " + id)
	}
	return conn, nil
}

// GetByDomain resolves a connection by its storefront domain, as reported
// by inbound webhooks.
func (s *ConnectionService) GetByDomain(ctx context.Context, shopDomain string) (*domain.Connection, error) {
	conn, err := s.repo.GetByDomain(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection by domain: %w", err)
	}
	if conn == nil {
		return nil, domain.NewNotFoundError("connection for domain " + shopDomain)
	}
	return conn, nil
}

// ListByUser returns every connection owned by a user.
func (s *ConnectionService) ListByUser(ctx context.Context, userID string) ([]*domain.Connection, error) {
	conns, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections by user: %w", err)
	}
	return conns, nil
}

// ListByProvider returns every connection for a provider tag.
func (s *ConnectionService) ListByProvider(ctx context.Context, provider string) ([]*domain.Connection, error) {
	conns, err := s.repo.ListByProvider(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections by provider: %w", err)
	}
	return conns, nil
}

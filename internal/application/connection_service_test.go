package application

import (
	"context"
	"errors"
	"testing"

	"storepulse-shopify-core/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectionFixture() (*ConnectionService, *fakeConnRepo, *fakePlatform) {
	repo := newFakeConnRepo()
	platform := newFakePlatform()
	svc := NewConnectionService(repo, platform, zerolog.Nop())
	return svc, repo, platform
}

func connect(t *testing.T, svc *ConnectionService, userID, shopDomain, plan string) *domain.Connection {
	t.Helper()
	conn, err := svc.Connect(context.Background(), ConnectInput{
		UserID:     userID,
		Provider:   "shopify",
		Domain:     shopDomain,
		Credential: domain.Credential{AccessToken: "shpat_test"},
		Meta:       domain.ConnectionMeta{Plan: plan},
	})
	require.NoError(t, err)
	return conn
}

func TestValidateNewConnection_DuplicateDomain(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	err := svc.ValidateNewConnection(context.Background(), "user-1", "shopify", "acme.myshopify.com", "pro")
	assert.ErrorIs(t, err, domain.ErrDuplicateConnection)
}

func TestValidateNewConnection_DisconnectedDomainAllowsReuse(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	_, err := svc.Disconnect(context.Background(), conn.ID)
	require.NoError(t, err)

	err = svc.ValidateNewConnection(context.Background(), "user-1", "shopify", "acme.myshopify.com", "pro")
	assert.NoError(t, err)
}

func TestValidateNewConnection_PlanLimit(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	connect(t, svc, "user-1", "first.myshopify.com", "free")

	err := svc.ValidateNewConnection(context.Background(), "user-1", "shopify", "second.myshopify.com", "free")
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)

	// The basic plan allows three active connections.
	err = svc.ValidateNewConnection(context.Background(), "user-1", "shopify", "second.myshopify.com", "basic")
	assert.NoError(t, err)
}

func TestValidateNewConnection_UnknownPlanGetsFreeAllowance(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	connect(t, svc, "user-1", "first.myshopify.com", "enterprise-custom")

	err := svc.ValidateNewConnection(context.Background(), "user-1", "shopify", "second.myshopify.com", "enterprise-custom")
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
}

func TestConnect_CreatesActiveConnection(t *testing.T) {
	svc, repo, _ := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	assert.NotEmpty(t, conn.ID)
	assert.Equal(t, domain.StatusConnected, conn.Status)
	assert.True(t, conn.HasCredential())
	assert.Empty(t, conn.Webhooks)

	stored, err := repo.Get(context.Background(), conn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusConnected, stored.Status)
}

func TestDisconnect_ClearsCredentialAndWebhooks(t *testing.T) {
	svc, repo, platform := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	_, err := svc.AddWebhook(context.Background(), conn.ID, "products/update", "https://example.com/webhooks")
	require.NoError(t, err)
	_, err = svc.AddWebhook(context.Background(), conn.ID, "orders/create", "https://example.com/webhooks")
	require.NoError(t, err)

	updated, err := svc.Disconnect(context.Background(), conn.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDisconnected, updated.Status)
	assert.Nil(t, updated.Credential)
	assert.Empty(t, updated.Webhooks)
	assert.Len(t, platform.deletedWebhooks, 2)

	stored, err := repo.Get(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, stored.Status)
	assert.Nil(t, stored.Credential)
}

func TestDisconnect_WebhookRemovalFailureIsNotFatal(t *testing.T) {
	topics := []string{"products/update", "orders/create", "app/uninstalled"}

	// Fail de-registration of each webhook in turn; whichever one breaks,
	// the disconnect completes and the surviving deletions still happen.
	for failing := 0; failing < len(topics); failing++ {
		svc, repo, platform := newConnectionFixture()
		conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

		for _, topic := range topics {
			_, err := svc.AddWebhook(context.Background(), conn.ID, topic, "https://example.com/webhooks")
			require.NoError(t, err)
		}
		failingID := int64(failing + 1)
		platform.deleteWebhookErrByID[failingID] = errors.New("api unavailable")

		updated, err := svc.Disconnect(context.Background(), conn.ID)
		require.NoError(t, err, "failing webhook %d", failingID)
		assert.Equal(t, domain.StatusDisconnected, updated.Status)
		assert.Nil(t, updated.Credential)
		assert.Empty(t, updated.Webhooks)

		var survivors []int64
		for id := int64(1); id <= int64(len(topics)); id++ {
			if id != failingID {
				survivors = append(survivors, id)
			}
		}
		assert.ElementsMatch(t, survivors, platform.deletedWebhooks, "failing webhook %d", failingID)

		stored, err := repo.Get(context.Background(), conn.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDisconnected, stored.Status)
	}
}

func TestDisconnect_NotFound(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	_, err := svc.Disconnect(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconnect_FromDisconnected(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	_, err := svc.Disconnect(context.Background(), conn.ID)
	require.NoError(t, err)

	updated, err := svc.Reconnect(context.Background(), conn.ID, ConnectInput{
		Credential: domain.Credential{AccessToken: "shpat_new"},
		Meta:       domain.ConnectionMeta{Plan: "basic"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConnected, updated.Status)
	require.NotNil(t, updated.Credential)
	assert.Equal(t, "shpat_new", updated.Credential.AccessToken)
	assert.Equal(t, "basic", updated.Meta.Plan)
	// Fields absent from the reconnect input keep their previous values.
	assert.Equal(t, "acme.myshopify.com", updated.Domain)
}

func TestReconnect_FromConnectedFails(t *testing.T) {
	svc, repo, _ := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	_, err := svc.Reconnect(context.Background(), conn.ID, ConnectInput{
		Credential: domain.Credential{AccessToken: "shpat_other"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// The stored record is untouched by the failed transition.
	stored, err := repo.Get(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, stored.Status)
	assert.Equal(t, "shpat_test", stored.Credential.AccessToken)
}

func TestReconnect_NotFound(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	_, err := svc.Reconnect(context.Background(), "missing", ConnectInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkExpired(t *testing.T) {
	svc, repo, _ := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	require.NoError(t, svc.MarkExpired(context.Background(), conn.ID))

	stored, err := repo.Get(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status)

	// Expiring twice is an invalid transition.
	assert.ErrorIs(t, svc.MarkExpired(context.Background(), conn.ID), domain.ErrInvalidState)
}

func TestAddWebhook_RequiresCredential(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	_, err := svc.Disconnect(context.Background(), conn.ID)
	require.NoError(t, err)

	_, err = svc.AddWebhook(context.Background(), conn.ID, "products/update", "https://example.com/webhooks")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestAddWebhook_UpstreamFailure(t *testing.T) {
	svc, _, platform := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	platform.createWebhookErr = errors.New("rate limited")

	_, err := svc.AddWebhook(context.Background(), conn.ID, "products/update", "https://example.com/webhooks")
	assert.True(t, domain.IsUpstreamError(err))
}

func TestRemoveWebhook(t *testing.T) {
	svc, repo, platform := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	wh, err := svc.AddWebhook(context.Background(), conn.ID, "products/update", "https://example.com/webhooks")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveWebhook(context.Background(), conn.ID, wh.ID))
	assert.Equal(t, []int64{wh.PlatformID}, platform.deletedWebhooks)

	stored, err := repo.Get(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Webhooks)

	assert.ErrorIs(t, svc.RemoveWebhook(context.Background(), conn.ID, wh.ID), domain.ErrNotFound)
}

func TestGetByDomain(t *testing.T) {
	svc, _, _ := newConnectionFixture()
	conn := connect(t, svc, "user-1", "acme.myshopify.com", "pro")

	found, err := svc.GetByDomain(context.Background(), "acme.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, conn.ID, found.ID)

	_, err = svc.GetByDomain(context.Background(), "other.myshopify.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAllowanceForPlan(t *testing.T) {
	assert.Equal(t, 1, AllowanceForPlan("free"))
	assert.Equal(t, 3, AllowanceForPlan("basic"))
	assert.Equal(t, 10, AllowanceForPlan("pro"))
	assert.Equal(t, 1, AllowanceForPlan(""))
	assert.Equal(t, 1, AllowanceForPlan("unknown"))
}

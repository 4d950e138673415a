package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/database"
	apierrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

// newTestStore backs the service with the real Redis client wrapper against
// an in-process server.
func newTestStore(t *testing.T) *database.RedisClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestService(store Store) *Service {
	return NewService(store, config.SessionConfig{
		SessionTTL:      86400,
		ConversationTTL: 7200,
		HistoryLimit:    5,
	}, logger.NewNoOpLogger())
}

func TestGetOrCreateNewSession(t *testing.T) {
	svc := newTestService(newTestStore(t))

	session, err := svc.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.False(t, session.CreatedAt.IsZero())

	loaded, err := svc.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
}

func TestGetOrCreateExistingSession(t *testing.T) {
	svc := newTestService(newTestStore(t))
	ctx := context.Background()

	created, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)

	again, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, created.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func TestGetUnknownSession(t *testing.T) {
	svc := newTestService(newTestStore(t))

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)

	apiErr := apierrors.AsAPIError(err)
	assert.Equal(t, apierrors.ErrCodeNotFound, apiErr.Code)
}

func TestAppendMessageAndHistory(t *testing.T) {
	svc := newTestService(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, svc.AppendMessage(ctx, "sess-1", "user", "What is your return policy?"))
	require.NoError(t, svc.AppendMessage(ctx, "sess-1", "assistant", "Returns are accepted within 30 days."))

	history, err := svc.History(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)

	session, err := svc.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, session.ConversationCount)
}

func TestHistoryTrimmedToBound(t *testing.T) {
	svc := newTestService(newTestStore(t))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, svc.AppendMessage(ctx, "sess-1", "user", "message"))
	}

	history, err := svc.History(ctx, "sess-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestCartLifecycle(t *testing.T) {
	svc := newTestService(newTestStore(t))
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)

	session, err := svc.AddCartItem(ctx, "sess-1", models.CartItem{Name: "Wireless Mouse", Price: 29.99})
	require.NoError(t, err)
	require.Len(t, session.ShoppingCart, 1)
	assert.False(t, session.ShoppingCart[0].AddedAt.IsZero())
	assert.Equal(t, 1, session.ShoppingCart[0].Quantity)

	cart, err := svc.Cart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, cart, 1)

	require.NoError(t, svc.ClearCart(ctx, "sess-1"))
	cart, err = svc.Cart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, cart)
}

func TestAddCartItemUnknownSession(t *testing.T) {
	svc := newTestService(newTestStore(t))

	_, err := svc.AddCartItem(context.Background(), "missing", models.CartItem{Name: "Mouse"})
	assert.Error(t, err)
}

func TestAnalytics(t *testing.T) {
	svc := newTestService(newTestStore(t))
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)

	require.NoError(t, svc.AppendMessage(ctx, "sess-1", "user", "Tell me about your shipping options"))
	require.NoError(t, svc.AppendMessage(ctx, "sess-1", "assistant", "We ship worldwide."))
	require.NoError(t, svc.AppendMessage(ctx, "sess-1", "user", "Is shipping free over fifty dollars?"))

	_, err = svc.AddCartItem(ctx, "sess-1", models.CartItem{Name: "Headphones"})
	require.NoError(t, err)

	analytics, err := svc.Analytics(ctx, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, 2, analytics.UserMessageCount)
	assert.Equal(t, 1, analytics.AssistantMessageCount)
	assert.Equal(t, 1, analytics.CartItemCount)
	require.NotEmpty(t, analytics.TopTopics)
	assert.Equal(t, "shipping", analytics.TopTopics[0].Word)
	assert.Equal(t, 2, analytics.TopTopics[0].Count)
}

func TestDelete(t *testing.T) {
	svc := newTestService(newTestStore(t))
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "sess-1"))

	_, err = svc.Get(ctx, "sess-1")
	assert.Error(t, err)
}

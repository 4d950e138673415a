package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRetrieverSearch(t *testing.T) {
	r := NewMemoryRetriever()
	err := r.AddDocuments(context.Background(), []Document{
		{ID: "returns", Title: "Return Policy", Content: "Items can be returned within 30 days of purchase."},
		{ID: "shipping", Title: "Shipping Policy", Content: "Standard shipping takes 5-7 business days."},
		{ID: "payments", Title: "Payment Methods", Content: "We accept credit cards and PayPal."},
	})
	require.NoError(t, err)

	passages, err := r.Search(context.Background(), "return policy days", 5)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "returns", passages[0].ID)

	for i := 1; i < len(passages); i++ {
		assert.GreaterOrEqual(t, passages[i-1].Score, passages[i].Score)
	}
}

func TestMemoryRetrieverTopK(t *testing.T) {
	r := NewDemoRetriever()

	passages, err := r.Search(context.Background(), "policy for the store", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(passages), 2)
}

func TestMemoryRetrieverNoMatch(t *testing.T) {
	r := NewMemoryRetriever()
	err := r.AddDocuments(context.Background(), []Document{
		{ID: "1", Title: "Shipping", Content: "Standard shipping takes 5-7 business days."},
	})
	require.NoError(t, err)

	passages, err := r.Search(context.Background(), "zzzz qqqq", 5)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestMemoryRetrieverUpsert(t *testing.T) {
	r := NewMemoryRetriever()
	ctx := context.Background()

	require.NoError(t, r.AddDocuments(ctx, []Document{
		{ID: "1", Title: "Original", Content: "original content about widgets"},
	}))
	require.NoError(t, r.AddDocuments(ctx, []Document{
		{ID: "1", Title: "Updated", Content: "updated content about widgets"},
	}))

	assert.Equal(t, 1, r.Len())

	passages, err := r.Search(ctx, "widgets", 5)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Updated", passages[0].Title)
}

func TestDemoRetrieverSeeded(t *testing.T) {
	r := NewDemoRetriever()
	assert.Greater(t, r.Len(), 0)

	passages, err := r.Search(context.Background(), "what is the return policy", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, passages)
}

package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRetriever is an in-process keyword retriever. It backs demos and
// tests and is the default backend when no external store is configured.
type MemoryRetriever struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryRetriever creates an empty in-memory retriever.
func NewMemoryRetriever() *MemoryRetriever {
	return &MemoryRetriever{}
}

// NewDemoRetriever creates an in-memory retriever pre-loaded with a small
// store knowledge base.
func NewDemoRetriever() *MemoryRetriever {
	r := NewMemoryRetriever()
	_ = r.AddDocuments(context.Background(), demoDocuments)
	return r
}

// Search scores documents by keyword overlap with the query and returns the
// top k in descending score order. It never fails.
func (r *MemoryRetriever) Search(_ context.Context, query string, k int) ([]RetrievedPassage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queryWords := wordSet(query)

	type scored struct {
		passage RetrievedPassage
		score   float64
		pos     int
	}

	var results []scored
	for i, doc := range r.docs {
		score := relevance(queryWords, doc.Title+" "+doc.Content)
		if score <= 0 {
			continue
		}
		results = append(results, scored{
			passage: RetrievedPassage{
				ID:      doc.ID,
				Title:   doc.Title,
				Content: doc.Content,
				Score:   score,
			},
			score: score,
			pos:   i,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].pos < results[j].pos
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}

	passages := make([]RetrievedPassage, 0, len(results))
	for _, s := range results {
		passages = append(passages, s.passage)
	}
	return passages, nil
}

// AddDocuments upserts documents keyed by ID.
func (r *MemoryRetriever) AddDocuments(_ context.Context, docs []Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range docs {
		if strings.TrimSpace(doc.ID) == "" {
			continue
		}
		replaced := false
		for i := range r.docs {
			if r.docs[i].ID == doc.ID {
				r.docs[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			r.docs = append(r.docs, doc)
		}
	}
	return nil
}

// Len returns the number of stored documents.
func (r *MemoryRetriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

var demoDocuments = []Document{
	{ID: "doc1", Title: "Return Policy", Content: "You can return items within 30 days of purchase. Refunds are processed within 5 business days."},
	{ID: "doc2", Title: "Shipping Policy", Content: "We ship to over 50 countries. Delivery takes 5-10 business days depending on the location."},
	{ID: "doc3", Title: "Payment Methods", Content: "We accept Visa, Mastercard, PayPal, and Apple Pay."},
	{ID: "doc4", Title: "Account Creation", Content: "Creating an account allows you to track orders and save your wishlist."},
	{ID: "doc5", Title: "Customer Support", Content: "Our customer support is available 24/7 via chat and email."},
	{ID: "doc6", Title: "Warranty Information", Content: "All products come with a 1-year manufacturer warranty covering defects."},
	{ID: "doc7", Title: "Order Tracking", Content: "Track your order status in real-time through your account dashboard."},
	{ID: "doc8", Title: "Gift Cards", Content: "Gift cards never expire and can be used for any purchase on our site."},
	{ID: "doc9", Title: "Price Match Guarantee", Content: "We'll match any competitor's price within 14 days of purchase."},
	{ID: "doc10", Title: "Product Availability", Content: "Items marked 'In Stock' ship within 24 hours. Backorders take 2-3 weeks."},
	{ID: "doc11", Title: "Order Cancellation", Content: "Cancel your order within 1 hour of placement for full refund."},
	{ID: "doc12", Title: "Loyalty Program", Content: "Earn points on every purchase and redeem for discounts."},
}

// Package session persists user sessions, conversation history and shopping
// carts in Redis with bounded TTLs.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"shopping-assistant/internal/common/config"
	apierrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

// Store is the subset of Redis operations the service needs. The database
// RedisClient satisfies it; tests use an in-memory fake.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	LPush(ctx context.Context, key string, values ...interface{}) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Service manages sessions. Session records live under session:<id>:info,
// conversation history under session:<id>:conversation as a newest-first
// list.
type Service struct {
	store           Store
	sessionTTL      time.Duration
	conversationTTL time.Duration
	historyLimit    int
	logger          logger.Logger
}

func NewService(store Store, cfg config.SessionConfig, log logger.Logger) *Service {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Service{
		store:           store,
		sessionTTL:      time.Duration(cfg.SessionTTL) * time.Second,
		conversationTTL: time.Duration(cfg.ConversationTTL) * time.Second,
		historyLimit:    historyLimit,
		logger:          log.WithFields(map[string]interface{}{"component": "session"}),
	}
}

func infoKey(id string) string         { return "session:" + id + ":info" }
func conversationKey(id string) string { return "session:" + id + ":conversation" }

// GetOrCreate loads the session, creating it when the id is unknown or
// empty. The returned session always has a usable ID.
func (s *Service) GetOrCreate(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	raw, err := s.store.Get(ctx, infoKey(id))
	if err == redis.Nil {
		session := &models.Session{
			ID:          id,
			CreatedAt:   time.Now().UTC(),
			LastActive:  time.Now().UTC(),
			Preferences: map[string]interface{}{},
		}
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		s.logger.Info("session created", map[string]interface{}{"session_id": id})
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	session.Touch()
	if err := s.save(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Get loads an existing session and reports not-found as an APIError.
func (s *Service) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.store.Get(ctx, infoKey(id))
	if err == redis.Nil {
		return nil, apierrors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func (s *Service) save(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	if err := s.store.Set(ctx, infoKey(session.ID), string(raw), s.sessionTTL); err != nil {
		return fmt.Errorf("store session %s: %w", session.ID, err)
	}
	return nil
}

// AppendMessage records one conversation turn, trims the history to its
// bound and refreshes both TTLs.
func (s *Service) AppendMessage(ctx context.Context, id, role, content string) error {
	msg := models.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := conversationKey(id)
	if err := s.store.LPush(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("append message for %s: %w", id, err)
	}
	if err := s.store.LTrim(ctx, key, 0, int64(s.historyLimit-1)); err != nil {
		return fmt.Errorf("trim history for %s: %w", id, err)
	}
	if err := s.store.Expire(ctx, key, s.conversationTTL); err != nil {
		return fmt.Errorf("refresh history ttl for %s: %w", id, err)
	}

	session, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return err
	}
	session.ConversationCount++
	session.Touch()
	return s.save(ctx, session)
}

// History returns up to limit messages in chronological order.
func (s *Service) History(ctx context.Context, id string, limit int) ([]models.ConversationMessage, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	raw, err := s.store.LRange(ctx, conversationKey(id), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", id, err)
	}

	// stored newest-first; reverse to chronological
	messages := make([]models.ConversationMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg models.ConversationMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// AddCartItem stamps and appends an item to the session cart.
func (s *Service) AddCartItem(ctx context.Context, id string, item models.CartItem) (*models.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	item.AddedAt = time.Now().UTC()
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	session.ShoppingCart = append(session.ShoppingCart, item)
	session.Touch()

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Cart returns the session's cart items.
func (s *Service) Cart(ctx context.Context, id string) ([]models.CartItem, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.ShoppingCart, nil
}

// ClearCart empties the cart, keeping the session itself.
func (s *Service) ClearCart(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	session.ShoppingCart = nil
	session.Touch()
	return s.save(ctx, session)
}

// Delete removes the session record and its history.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Del(ctx, infoKey(id), conversationKey(id))
}

// Analytics summarizes session activity, including the most frequent topic
// words across user messages.
func (s *Service) Analytics(ctx context.Context, id string) (*models.SessionAnalytics, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.History(ctx, id, s.historyLimit)
	if err != nil {
		return nil, err
	}

	analytics := &models.SessionAnalytics{
		ConversationCount: session.ConversationCount,
		CartItemCount:     len(session.ShoppingCart),
		Preferences:       session.Preferences,
		LastActive:        session.LastActive,
	}
	if !session.CreatedAt.IsZero() {
		analytics.SessionDuration = session.LastActive.Sub(session.CreatedAt).Round(time.Second).String()
	}

	topics := map[string]int{}
	for _, msg := range history {
		switch msg.Role {
		case "user":
			analytics.UserMessageCount++
			for word := range topicWords(msg.Content) {
				topics[word]++
			}
		case "assistant":
			analytics.AssistantMessageCount++
		}
	}
	analytics.TopTopics = topTopics(topics, 5)

	return analytics, nil
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "what": true, "your": true,
	"this": true, "that": true, "with": true, "have": true, "does": true,
	"how": true, "can": true, "you": true, "are": true, "about": true,
}

func topicWords(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) >= 4 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func topTopics(counts map[string]int, n int) []models.TopicCount {
	topics := make([]models.TopicCount, 0, len(counts))
	for word, count := range counts {
		topics = append(topics, models.TopicCount{Word: word, Count: count})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Word < topics[j].Word
	})
	if len(topics) > n {
		topics = topics[:n]
	}
	return topics
}

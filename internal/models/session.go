package models

import "time"

// Session represents a user session stored in Redis.
type Session struct {
	ID                string                 `json:"id"`
	CreatedAt         time.Time              `json:"created_at"`
	LastActive        time.Time              `json:"last_active"`
	ConversationCount int                    `json:"conversation_count"`
	Preferences       map[string]interface{} `json:"preferences"`
	ShoppingCart      []CartItem             `json:"shopping_cart"`
}

// Touch updates the last-active timestamp.
func (s *Session) Touch() {
	s.LastActive = time.Now().UTC()
}

// ConversationMessage is one entry of the bounded conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CartItem is one entry of the session shopping cart.
type CartItem struct {
	Name     string                 `json:"name"`
	SKU      string                 `json:"sku,omitempty"`
	Quantity int                    `json:"quantity,omitempty"`
	Price    float64                `json:"price,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	AddedAt  time.Time              `json:"added_at"`
}

// SessionAnalytics summarizes activity within a session.
type SessionAnalytics struct {
	SessionDuration       string                 `json:"session_duration,omitempty"`
	ConversationCount     int                    `json:"conversation_count"`
	UserMessageCount      int                    `json:"user_message_count"`
	AssistantMessageCount int                    `json:"assistant_message_count"`
	CartItemCount         int                    `json:"cart_item_count"`
	TopTopics             []TopicCount           `json:"top_topics"`
	Preferences           map[string]interface{} `json:"preferences"`
	LastActive            time.Time              `json:"last_active"`
}

// TopicCount is one keyword frequency entry in the analytics.
type TopicCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

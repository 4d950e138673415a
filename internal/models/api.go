package models

// QueryPayload is the request body of the query endpoints.
type QueryPayload struct {
	Q         string `json:"q" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
}

// CartItemPayload is the request body for adding an item to the cart.
type CartItemPayload struct {
	Name     string                 `json:"name" binding:"required"`
	SKU      string                 `json:"sku"`
	Quantity int                    `json:"quantity"`
	Price    float64                `json:"price"`
	Metadata map[string]interface{} `json:"metadata"`
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
	Error   interface{}            `json:"error,omitempty"`
}

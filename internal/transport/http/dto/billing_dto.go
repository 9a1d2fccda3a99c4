package dto

type InvoiceCreateRequest struct {
	ProductID    string `json:"product_id"`
	PurchaseType string `json:"purchase_type"`
}

type InvoiceCreateResponse struct {
	InvoiceURL string `json:"invoice_url"`
	Stars      int64  `json:"stars"`
}

// WebhookResponse is the fixed provider-facing envelope. It never carries
// internal error detail and always rides on HTTP 200.
type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type SpinResponse struct {
	PrizeID  string `json:"prize_id"`
	CoinsWon int64  `json:"coins_won"`
	Balance  int64  `json:"balance"`
	Source   string `json:"source"`
}

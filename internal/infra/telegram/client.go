package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Client struct {
	api *tgbotapi.BotAPI
}

type InvoiceLinkParams struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Label       string
	Amount      int64
	PhotoURL    string
}

func NewClient(token string) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Client{api: api}, nil
}

// CreateInvoiceLink calls the raw Bot API method; the library has no typed
// config for it. Shipping and contact collection stay off: digital goods only.
func (c *Client) CreateInvoiceLink(ctx context.Context, p InvoiceLinkParams) (string, error) {
	if c == nil || c.api == nil {
		return "", fmt.Errorf("telegram client is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prices, err := json.Marshal([]tgbotapi.LabeledPrice{
		{Label: p.Label, Amount: int(p.Amount)},
	})
	if err != nil {
		return "", fmt.Errorf("marshal invoice prices: %w", err)
	}

	params := tgbotapi.Params{
		"title":       p.Title,
		"description": p.Description,
		"payload":     p.Payload,
		"currency":    p.Currency,
		"prices":      string(prices),
	}
	params.AddNonEmpty("photo_url", p.PhotoURL)

	resp, err := c.api.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return "", fmt.Errorf("createInvoiceLink request: %w", err)
	}

	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invoice link: %w", err)
	}
	if strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("provider returned empty invoice link")
	}

	return link, nil
}

func (c *Client) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	if c == nil || c.api == nil {
		return fmt.Errorf("telegram client is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.api.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	}); err != nil {
		return fmt.Errorf("answer pre-checkout query: %w", err)
	}

	return nil
}

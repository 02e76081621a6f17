package orderbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bikraj2/10101/logger"
	tradeorder "github.com/bikraj2/10101/trade/order"
)

// Client talks to the coordinator's orderbook HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PostNewOrder submits an order to the coordinator. An error means the
// coordinator did not accept the order; the caller must not treat the order
// as open.
func (c *Client) PostNewOrder(ctx context.Context, o *tradeorder.Order) error {
	payload := NewOrderFromClient(o)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	url := fmt.Sprintf("%s/api/orderbook/orders", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post order to coordinator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Logger.Warn().
			Str("orderId", o.ID.String()).
			Int("status", resp.StatusCode).
			Str("response", string(msg)).
			Msg("Coordinator rejected order")

		return fmt.Errorf("coordinator rejected order: status %d: %s", resp.StatusCode, string(msg))
	}

	logger.Logger.Info().Str("orderId", o.ID.String()).Msg("Posted order to coordinator")

	return nil
}

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
)

// HTTPClient implements Ledger over a JSON HTTP API:
//
//	GET  /v1/accounts/{account}/transactions?since=RFC3339
//	POST /v1/decisions
//	POST /v1/redistributions
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a ledger client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type decisionRequest struct {
	TxID     string          `json:"tx_id"`
	Decision domain.Decision `json:"decision"`
}

func (c *HTTPClient) FetchRecent(ctx context.Context, account string, since time.Time) ([]domain.TransactionRecord, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions?%s", c.baseURL, url.PathEscape(account), q.Encode())

	var out []domain.TransactionRecord
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch recent for %s: %w", account, err)
	}
	return out, nil
}

func (c *HTTPClient) SubmitDecision(ctx context.Context, txID string, decision domain.Decision) error {
	body := decisionRequest{TxID: txID, Decision: decision}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/decisions", body, nil); err != nil {
		return fmt.Errorf("submit decision %s: %w", txID, err)
	}
	return nil
}

func (c *HTTPClient) Redistribute(ctx context.Context, frozen domain.FrozenBalance) error {
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/redistributions", frozen, nil); err != nil {
		return fmt.Errorf("redistribute %s: %w", frozen.ID, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode >= 400:
		return fmt.Errorf("http %d: %s: %w", resp.StatusCode, string(body), ErrRejected)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Package ledger talks to a Blockfrost-style transaction metadata service
// and searches it for notarized fingerprint hashes. The service is
// read-only and paginated; it offers no lookup-by-value, so every search
// is an early-terminating page scan.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// pageSize is the page length requested from the service.
const pageSize = 100

// TransportError reports an unreachable service or a non-success status.
// Searches convert it to a "no evidence found" verdict at their boundary.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("ledger request %s: status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transaction is one entry of a wallet's transaction list.
type Transaction struct {
	TxHash string `json:"tx_hash"`
}

// MetadataEntry is one metadata record attached to a transaction.
type MetadataEntry struct {
	Label        string          `json:"label"`
	JSONMetadata json.RawMessage `json:"json_metadata"`
}

// Label is one metadata label bucket descriptor.
type Label struct {
	Label string `json:"label"`
}

// LabeledTransaction is one transaction listed under a metadata label,
// with its payload inlined.
type LabeledTransaction struct {
	TxHash       string          `json:"tx_hash"`
	JSONMetadata json.RawMessage `json:"json_metadata"`
}

// Client is a minimal read-only client for the ledger metadata API.
type Client struct {
	baseURL    string
	projectID  string
	httpClient *http.Client
}

// NewClient creates a Client for the service at baseURL authenticating
// with the given project credential.
func NewClient(baseURL, projectID string) *Client {
	return &Client{
		baseURL:   baseURL,
		projectID: projectID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AddressTransactions fetches one page of a wallet's transaction list.
// An empty page signals the end of pagination.
func (c *Client) AddressTransactions(ctx context.Context, address string, page int) ([]Transaction, error) {
	var txs []Transaction
	path := fmt.Sprintf("/addresses/%s/transactions?page=%d&count=%d", url.PathEscape(address), page, pageSize)
	if err := c.getJSON(ctx, path, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// TransactionMetadata fetches all metadata records of one transaction.
func (c *Client) TransactionMetadata(ctx context.Context, txHash string) ([]MetadataEntry, error) {
	var entries []MetadataEntry
	path := fmt.Sprintf("/txs/%s/metadata", url.PathEscape(txHash))
	if err := c.getJSON(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MetadataLabels fetches one page of the ledger's label bucket list.
func (c *Client) MetadataLabels(ctx context.Context, page int) ([]Label, error) {
	var labels []Label
	path := fmt.Sprintf("/metadata/txs/labels?page=%d&count=%d", page, pageSize)
	if err := c.getJSON(ctx, path, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// LabelTransactions fetches one page of the transactions bearing a label.
func (c *Client) LabelTransactions(ctx context.Context, label string, page int) ([]LabeledTransaction, error) {
	var txs []LabeledTransaction
	path := fmt.Sprintf("/metadata/txs/labels/%s?page=%d&count=%d", url.PathEscape(label), page, pageSize)
	if err := c.getJSON(ctx, path, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// getJSON performs one authenticated GET and decodes the JSON response.
// Any network failure or non-2xx status becomes a *TransportError.
func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &TransportError{URL: fullURL, Err: err}
	}
	req.Header.Set("project_id", c.projectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{URL: fullURL, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &TransportError{URL: fullURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

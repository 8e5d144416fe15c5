package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
)

// API is the slice of the ledger client the search engine needs.
type API interface {
	AddressTransactions(ctx context.Context, address string, page int) ([]Transaction, error)
	TransactionMetadata(ctx context.Context, txHash string) ([]MetadataEntry, error)
	MetadataLabels(ctx context.Context, page int) ([]Label, error)
	LabelTransactions(ctx context.Context, label string, page int) ([]LabeledTransaction, error)
}

// Match is the first metadata record found carrying the target hash.
type Match struct {
	TxHash   string          `json:"tx_hash"`
	Label    string          `json:"label,omitempty"`
	Metadata json.RawMessage `json:"metadata"`
}

// Engine runs find-first scans over the paginated ledger.
//
// Both search modes share a deliberate failure policy: a transport error
// aborts the scan and reports "no evidence found" rather than surfacing an
// ambiguous fault. The caller turns that into a possible-tampering verdict,
// which is the safe direction to be wrong in.
type Engine struct {
	api API
}

// NewEngine creates an Engine backed by the given client.
func NewEngine(api API) *Engine {
	return &Engine{api: api}
}

// SearchByWallet scans one wallet's transaction history for target.
// It returns the first match under (page, transaction, record) scan order,
// or nil when the history is exhausted or the ledger is unreachable.
func (e *Engine) SearchByWallet(ctx context.Context, address, target string) *Match {
	match, err := findFirst(
		func(page int) ([]Transaction, error) {
			return e.api.AddressTransactions(ctx, address, page)
		},
		func(tx Transaction) (*Match, error) {
			entries, err := e.api.TransactionMetadata(ctx, tx.TxHash)
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				if payloadContains(entry.JSONMetadata, target) {
					return &Match{TxHash: tx.TxHash, Label: entry.Label, Metadata: entry.JSONMetadata}, nil
				}
			}
			return nil, nil
		},
	)
	if err != nil {
		slog.Warn("wallet search aborted, treating as not found", "address", address, "error", err)
		return nil
	}
	return match
}

// SearchEverywhere scans every metadata label bucket for target.
// It returns the first match under (label page, transaction page,
// transaction) scan order, or nil when the ledger is exhausted or
// unreachable. Worst case this touches every metadata record the ledger
// holds; the service offers no server-side value lookup.
func (e *Engine) SearchEverywhere(ctx context.Context, target string) *Match {
	match, err := findFirst(
		func(page int) ([]Label, error) {
			return e.api.MetadataLabels(ctx, page)
		},
		func(label Label) (*Match, error) {
			return findFirst(
				func(page int) ([]LabeledTransaction, error) {
					return e.api.LabelTransactions(ctx, label.Label, page)
				},
				func(tx LabeledTransaction) (*Match, error) {
					if payloadContains(tx.JSONMetadata, target) {
						return &Match{TxHash: tx.TxHash, Label: label.Label, Metadata: tx.JSONMetadata}, nil
					}
					return nil, nil
				},
			)
		},
	)
	if err != nil {
		slog.Warn("ledger-wide search aborted, treating as not found", "error", err)
		return nil
	}
	return match
}

// findFirst drives a lazy paginated scan: fetch page 1, 2, ... until an
// empty page, visiting every item in order and stopping at the first
// match. No page beyond the matching one is fetched.
func findFirst[T any](fetch func(page int) ([]T, error), visit func(T) (*Match, error)) (*Match, error) {
	for page := 1; ; page++ {
		items, err := fetch(page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, nil
		}
		for _, item := range items {
			match, err := visit(item)
			if err != nil {
				return nil, err
			}
			if match != nil {
				return match, nil
			}
		}
	}
}

// payloadContains reports whether a json_metadata payload carries target:
// an object payload matches when any top-level value equals target or is a
// list containing it; a bare list payload matches on membership.
func payloadContains(raw json.RawMessage, target string) bool {
	if len(raw) == 0 {
		return false
	}
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	switch p := payload.(type) {
	case map[string]interface{}:
		for _, v := range p {
			if valueMatches(v, target) {
				return true
			}
		}
	case []interface{}:
		return listContains(p, target)
	}
	return false
}

// valueMatches tests one metadata value: scalar equality or list membership.
func valueMatches(v interface{}, target string) bool {
	switch val := v.(type) {
	case string:
		return val == target
	case []interface{}:
		return listContains(val, target)
	}
	return false
}

func listContains(list []interface{}, target string) bool {
	for _, el := range list {
		if s, ok := el.(string); ok && s == target {
			return true
		}
	}
	return false
}

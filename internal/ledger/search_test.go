package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// fakeAPI serves canned pages and records which calls were made.
type fakeAPI struct {
	// walletPages maps address -> pages of transactions. Page numbers are
	// 1-based; a missing page is served as empty.
	walletPages map[string][][]Transaction
	// metadata maps tx hash -> its metadata records.
	metadata map[string][]MetadataEntry
	// labelPages holds the ledger-wide label bucket list.
	labelPages [][]Label
	// labelTxPages maps label -> pages of labeled transactions.
	labelTxPages map[string][][]LabeledTransaction

	// failOn makes the named method return a transport error.
	failOn string

	calls []string
}

func (f *fakeAPI) fail(method string) error {
	if f.failOn == method {
		return &TransportError{URL: "fake://" + method, Status: 502}
	}
	return nil
}

func (f *fakeAPI) AddressTransactions(ctx context.Context, address string, page int) ([]Transaction, error) {
	f.calls = append(f.calls, fmt.Sprintf("txs:%s:%d", address, page))
	if err := f.fail("AddressTransactions"); err != nil {
		return nil, err
	}
	pages := f.walletPages[address]
	if page > len(pages) {
		return nil, nil
	}
	return pages[page-1], nil
}

func (f *fakeAPI) TransactionMetadata(ctx context.Context, txHash string) ([]MetadataEntry, error) {
	f.calls = append(f.calls, "meta:"+txHash)
	if err := f.fail("TransactionMetadata"); err != nil {
		return nil, err
	}
	return f.metadata[txHash], nil
}

func (f *fakeAPI) MetadataLabels(ctx context.Context, page int) ([]Label, error) {
	f.calls = append(f.calls, fmt.Sprintf("labels:%d", page))
	if err := f.fail("MetadataLabels"); err != nil {
		return nil, err
	}
	if page > len(f.labelPages) {
		return nil, nil
	}
	return f.labelPages[page-1], nil
}

func (f *fakeAPI) LabelTransactions(ctx context.Context, label string, page int) ([]LabeledTransaction, error) {
	f.calls = append(f.calls, fmt.Sprintf("labeltxs:%s:%d", label, page))
	if err := f.fail("LabelTransactions"); err != nil {
		return nil, err
	}
	pages := f.labelTxPages[label]
	if page > len(pages) {
		return nil, nil
	}
	return pages[page-1], nil
}

func objectPayload(t *testing.T, kv map[string]interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(kv)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

const target = "2ac9a6746aca543af8dff39894cfe8173afba21eb01c6fae33d52947222855ef"

func TestSearchByWalletFindsMatchOnLaterPage(t *testing.T) {
	api := &fakeAPI{
		walletPages: map[string][][]Transaction{
			"addr1": {
				{{TxHash: "tx-a"}, {TxHash: "tx-b"}},
				{{TxHash: "tx-c"}},
			},
		},
		metadata: map[string][]MetadataEntry{
			"tx-a": {{Label: "674", JSONMetadata: objectPayload(t, map[string]interface{}{"hash": "other"})}},
			"tx-c": {{Label: "674", JSONMetadata: objectPayload(t, map[string]interface{}{"hash": target})}},
		},
	}

	match := NewEngine(api).SearchByWallet(context.Background(), "addr1", target)
	if match == nil {
		t.Fatal("match = nil, want tx-c")
	}
	if match.TxHash != "tx-c" {
		t.Errorf("TxHash = %q, want tx-c", match.TxHash)
	}
	if match.Label != "674" {
		t.Errorf("Label = %q, want 674", match.Label)
	}
}

func TestSearchByWalletStopsAtFirstMatch(t *testing.T) {
	api := &fakeAPI{
		walletPages: map[string][][]Transaction{
			"addr1": {
				{{TxHash: "tx-a"}, {TxHash: "tx-b"}},
				{{TxHash: "tx-never"}},
			},
		},
		metadata: map[string][]MetadataEntry{
			"tx-a": {{Label: "674", JSONMetadata: objectPayload(t, map[string]interface{}{"hash": target})}},
		},
	}

	match := NewEngine(api).SearchByWallet(context.Background(), "addr1", target)
	if match == nil || match.TxHash != "tx-a" {
		t.Fatalf("match = %+v, want tx-a", match)
	}
	for _, call := range api.calls {
		if call == "txs:addr1:2" || call == "meta:tx-never" {
			t.Errorf("scan continued past first match: %v", api.calls)
		}
	}
}

func TestSearchByWalletExhaustsHistory(t *testing.T) {
	api := &fakeAPI{
		walletPages: map[string][][]Transaction{
			"addr1": {{{TxHash: "tx-a"}}},
		},
		metadata: map[string][]MetadataEntry{
			"tx-a": {{Label: "674", JSONMetadata: objectPayload(t, map[string]interface{}{"hash": "other"})}},
		},
	}

	if match := NewEngine(api).SearchByWallet(context.Background(), "addr1", target); match != nil {
		t.Errorf("match = %+v, want nil", match)
	}
}

func TestSearchByWalletTransportErrorMeansNotFound(t *testing.T) {
	for _, method := range []string{"AddressTransactions", "TransactionMetadata"} {
		t.Run(method, func(t *testing.T) {
			api := &fakeAPI{
				walletPages: map[string][][]Transaction{
					"addr1": {{{TxHash: "tx-a"}}},
				},
				failOn: method,
			}
			if match := NewEngine(api).SearchByWallet(context.Background(), "addr1", target); match != nil {
				t.Errorf("match = %+v, want nil on transport error", match)
			}
		})
	}
}

func TestSearchEverywhereFindsMatchAcrossLabels(t *testing.T) {
	api := &fakeAPI{
		labelPages: [][]Label{
			{{Label: "100"}, {Label: "674"}},
		},
		labelTxPages: map[string][][]LabeledTransaction{
			"100": {
				{{TxHash: "tx-x", JSONMetadata: objectPayload(t, map[string]interface{}{"note": "nothing"})}},
			},
			"674": {
				{{TxHash: "tx-y", JSONMetadata: objectPayload(t, map[string]interface{}{"note": "still nothing"})}},
				{{TxHash: "tx-z", JSONMetadata: objectPayload(t, map[string]interface{}{"hash": target})}},
			},
		},
	}

	match := NewEngine(api).SearchEverywhere(context.Background(), target)
	if match == nil {
		t.Fatal("match = nil, want tx-z")
	}
	if match.TxHash != "tx-z" || match.Label != "674" {
		t.Errorf("match = %+v, want tx-z under label 674", match)
	}
}

func TestSearchEverywhereTransportErrorMeansNotFound(t *testing.T) {
	api := &fakeAPI{
		labelPages: [][]Label{{{Label: "674"}}},
		failOn:     "LabelTransactions",
	}
	if match := NewEngine(api).SearchEverywhere(context.Background(), target); match != nil {
		t.Errorf("match = %+v, want nil on transport error", match)
	}
}

func TestFindFirstStopsFetchingAfterEmptyPage(t *testing.T) {
	fetched := 0
	_, err := findFirst(
		func(page int) ([]string, error) {
			fetched++
			if page <= 2 {
				return []string{"x"}, nil
			}
			return nil, nil
		},
		func(string) (*Match, error) { return nil, nil },
	)
	if err != nil {
		t.Fatalf("findFirst: %v", err)
	}
	if fetched != 3 {
		t.Errorf("fetched %d pages, want 3", fetched)
	}
}

func TestPayloadContains(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"scalar value", fmt.Sprintf(`{"hash":%q}`, target), true},
		{"value inside list", fmt.Sprintf(`{"hashes":["aaa",%q]}`, target), true},
		{"bare list", fmt.Sprintf(`["aaa",%q]`, target), true},
		{"no match", `{"hash":"aaa"}`, false},
		{"numeric values", `{"n":42}`, false},
		{"key is not a value", fmt.Sprintf(`{%q:"x"}`, target), false},
		{"empty payload", ``, false},
		{"malformed json", `{`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := payloadContains(json.RawMessage(tc.payload), target); got != tc.want {
				t.Errorf("payloadContains(%q) = %v, want %v", tc.payload, got, tc.want)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{URL: "http://x", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("TransportError does not unwrap to its cause")
	}
}

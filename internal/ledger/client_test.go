package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsProjectCredential(t *testing.T) {
	var gotHeader, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("project_id")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `[{"tx_hash":"tx-1"},{"tx_hash":"tx-2"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-project")
	txs, err := c.AddressTransactions(context.Background(), "addr1", 3)
	if err != nil {
		t.Fatalf("AddressTransactions: %v", err)
	}
	if gotHeader != "secret-project" {
		t.Errorf("project_id header = %q", gotHeader)
	}
	if gotPath != "/addresses/addr1/transactions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "page=3&count=100" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(txs) != 2 || txs[0].TxHash != "tx-1" {
		t.Errorf("txs = %+v", txs)
	}
}

func TestClientNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key")
	_, err := c.TransactionMetadata(context.Background(), "tx-1")

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if terr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", terr.Status)
	}
}

func TestClientUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, "key")
	_, err := c.MetadataLabels(context.Background(), 1)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not":"a list"`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	_, err := c.LabelTransactions(context.Background(), "674", 1)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
}

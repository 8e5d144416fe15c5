package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"veriframe/internal/artifacts"
	"veriframe/internal/verify"
)

func TestProgressStreamFormat(t *testing.T) {
	manager := verify.NewManager()
	run, err := manager.Begin(verify.KindWalletVerify)
	if err != nil {
		t.Fatal(err)
	}
	run.Progress.SetTotal(10)
	run.Progress.Advance()
	run.Progress.Advance()
	run.Progress.Advance()

	h := &ProgressHandler{Manager: manager, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "data:3|10\n\n") {
		t.Errorf("stream %q does not carry data:3|10", rec.Body.String())
	}
}

func TestProgressStreamIdleBeforeFirstRun(t *testing.T) {
	h := &ProgressHandler{Manager: verify.NewManager(), Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "data:0|0\n\n") {
		t.Errorf("idle stream = %q, want data:0|0 events", rec.Body.String())
	}
}

// multipartBody builds a form with one file field and optional text fields.
func multipartBody(t *testing.T, fileField, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func newVerifyHandler(t *testing.T) *VerifyHandler {
	t.Helper()
	store, err := artifacts.New(filepath.Join(t.TempDir(), "up"), filepath.Join(t.TempDir(), "cmp"), 7)
	if err != nil {
		t.Fatal(err)
	}
	return &VerifyHandler{Manager: verify.NewManager(), Store: store}
}

func TestVerifyRejectsConcurrentRun(t *testing.T) {
	h := newVerifyHandler(t)
	if _, err := h.Manager.Begin(verify.KindCompare); err != nil {
		t.Fatal(err)
	}

	body, ct := multipartBody(t, "file", "clip.mp4", []byte("x"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/verify", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var e ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body: %v", err)
	}
	if e.Error.Code != "busy" {
		t.Errorf("error code = %q, want busy", e.Error.Code)
	}
}

func TestVerifyRequiresFile(t *testing.T) {
	h := newVerifyHandler(t)

	body, ct := multipartBody(t, "", "", nil, map[string]string{"wallet": "addr"})
	req := httptest.NewRequest(http.MethodPost, "/api/verify", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if h.Manager.Active() != nil {
		t.Error("failed request left the pipeline claimed")
	}
}

func TestVerifyRejectsNonMultipart(t *testing.T) {
	h := newVerifyHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader("plain"))
	rec := httptest.NewRecorder()

	h.Verify(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeLister struct {
	keys []string
	err  error
	kind string
}

func (f *fakeLister) ListReports(ctx context.Context, kind string) ([]string, error) {
	f.kind = kind
	if f.err != nil {
		return nil, f.err
	}
	return f.keys, nil
}

func newReportsRequest(kind string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/reports/"+kind, nil)
	req.SetPathValue("kind", kind)
	return req
}

func TestReportsHandlerListsKeys(t *testing.T) {
	lister := &fakeLister{keys: []string{
		"reports/items/2026-02-10/aa.csv",
		"reports/items/2026-02-11/bb.csv",
	}}
	h := NewReportsHandler(lister, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ListReports(rec, newReportsRequest("items"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=%d body=%s", rec.Code, http.StatusOK, rec.Body)
	}
	if lister.kind != "items" {
		t.Fatalf("lister kind got=%q want=items", lister.kind)
	}
	var body struct {
		Kind    string   `json:"kind"`
		Reports []string `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if body.Kind != "items" || len(body.Reports) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReportsHandlerRejectsUnknownKind(t *testing.T) {
	lister := &fakeLister{}
	h := NewReportsHandler(lister, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ListReports(rec, newReportsRequest("weekly"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
	if lister.kind != "" {
		t.Fatal("lister must not be consulted for an unknown kind")
	}
}

func TestReportsHandlerStorageError(t *testing.T) {
	lister := &fakeLister{err: errors.New("bucket unreachable")}
	h := NewReportsHandler(lister, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ListReports(rec, newReportsRequest("months"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusInternalServerError)
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// ── WriteJSON / WriteError ───────────────────────────────────────────

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"msg": "ok"})

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body["msg"] != "ok" {
		t.Errorf("body = %v, want msg=ok", body)
	}
}

func TestWriteError(t *testing.T) {
	t.Run("without_detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, http.StatusNotFound, "recording not found")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "detail") {
			t.Errorf("empty detail should be omitted: %s", rec.Body.String())
		}
	})

	t.Run("with_detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteErrorDetail(rec, http.StatusBadRequest, "invalid mode", "unknown enhancement mode \"poem\"")
		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("JSON decode: %v", err)
		}
		if body.Error != "invalid mode" || !strings.Contains(body.Detail, "poem") {
			t.Errorf("body = %+v", body)
		}
	})
}

// ── DecodeJSON ───────────────────────────────────────────────────────

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"memo"}`, false},
		{"empty", ``, true},
		{"malformed", `{bad`, true},
		{"unknown_field", `{"name":"memo","color":"red"}`, true},
		{"trailing_value", `{"name":"a"} {"name":"b"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && dst.Name != "memo" {
				t.Errorf("Name = %q, want memo", dst.Name)
			}
		})
	}

	t.Run("nil_body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Body = nil
		if err := DecodeJSON(req, &payload{}); err == nil {
			t.Error("expected error for nil body")
		}
	})
}

// ── Path and query helpers ───────────────────────────────────────────

func TestPathString(t *testing.T) {
	withParam := func(v string) *http.Request {
		req := httptest.NewRequest("GET", "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", v)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	if v, err := PathString(withParam("0192f1a4"), "id"); err != nil || v != "0192f1a4" {
		t.Errorf("PathString = %q, %v; want 0192f1a4", v, err)
	}
	if _, err := PathString(withParam("  "), "id"); err == nil {
		t.Error("expected error for blank parameter")
	}
}

func TestQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/?q=+milk+&empty=", nil)
	if v, ok := QueryString(req, "q"); !ok || v != "milk" {
		t.Errorf("QueryString(q) = %q, %v; want milk, true", v, ok)
	}
	if _, ok := QueryString(req, "empty"); ok {
		t.Error("QueryString(empty) should report false")
	}
	if _, ok := QueryString(req, "missing"); ok {
		t.Error("QueryString(missing) should report false")
	}
}

func TestQueryStringList(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"tag=work", []string{"work"}},
		{"tag=work,+ideas+,,home", []string{"work", "ideas", "home"}},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		if got := QueryStringList(req, "tag"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("QueryStringList(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

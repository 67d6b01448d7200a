package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
)

func TestGetPositiveIntQueryParameter(t *testing.T) {
	tests := []struct {
		name   string
		target string
		value  int
		ok     bool
	}{
		{name: "missing", target: "/report", value: 20, ok: true},
		{name: "valid", target: "/report?top_k=3", value: 3, ok: true},
		{name: "zero", target: "/report?top_k=0"},
		{name: "negative", target: "/report?top_k=-2"},
		{name: "not a number", target: "/report?top_k=ten"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			v, _, ok := GetPositiveIntQueryParameter(w, httptest.NewRequest(http.MethodGet, test.target, nil), "top_k", 20)
			if ok != test.ok || v != test.value {
				t.Fatalf("want (%d, %v), got (%d, %v)", test.value, test.ok, v, ok)
			}
			if !ok && w.Code != http.StatusBadRequest {
				t.Fatalf("want status 400, got %d", w.Code)
			}
		})
	}
}

func TestSetHTTPStatusCodeTag(t *testing.T) {
	e := SetHTTPStatusCodeTag(&sentry.Event{}, &sentry.EventHint{Response: &http.Response{StatusCode: http.StatusBadRequest}})
	if e.Tags[HTTPStatusCodeTag] != "400" {
		t.Fatalf("want the status code tag, got %v", e.Tags)
	}

	e = SetHTTPStatusCodeTag(&sentry.Event{Tags: map[string]string{HTTPStatusCodeTag: "500"}}, &sentry.EventHint{Response: &http.Response{StatusCode: http.StatusOK}})
	if e.Tags[HTTPStatusCodeTag] != "500" {
		t.Fatalf("an existing tag should be kept, got %v", e.Tags)
	}
}

func TestNameTransaction(t *testing.T) {
	hub := sentry.NewHub(nil, sentry.NewScope())
	var called bool
	handler := NameTransaction("/report", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "/report?top_k=3", nil)
	r = r.WithContext(sentry.SetHubOnContext(r.Context(), hub))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !called {
		t.Fatal("the next handler should be called")
	}
	if got := hub.Scope().Transaction(); got != "GET /report" {
		t.Fatalf("want transaction %q, got %q", "GET /report", got)
	}
}

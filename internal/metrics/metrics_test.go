package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	c := NewCollector(Sources{
		Recordings:  func() int { return 3 },
		ImportQueue: func() int { return 1 },
	})
	if n := testutil.CollectAndCount(c); n != 5 {
		t.Errorf("CollectAndCount = %d, want 5", n)
	}

	want := `
# HELP voicememo_recordings Recordings in the library.
# TYPE voicememo_recordings gauge
voicememo_recordings 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "voicememo_recordings"); err != nil {
		t.Error(err)
	}
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/v1/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/recordings/{id}", "418"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recordings/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/recordings/{id}", "418"))

	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/positions/{leg}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/positions/{leg}", "404")
	before := testutil.ToFloat64(counter)

	for _, leg := range []string{"NIFTY_25JUL2024_24000_C", "NIFTY_25JUL2024_24000_P"} {
		req := httptest.NewRequest("GET", "/positions/"+leg, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected 2 requests under the route pattern, got %v", got)
	}
}

func TestObserveReport(t *testing.T) {
	ObserveReport(time.Now(), 12, 3, 5)

	if got := testutil.ToFloat64(LogSize); got != 12 {
		t.Errorf("log size: got %v", got)
	}
	if got := testutil.ToFloat64(Contracts.WithLabelValues("open")); got != 3 {
		t.Errorf("open: got %v", got)
	}
	if got := testutil.ToFloat64(Contracts.WithLabelValues("closed")); got != 5 {
		t.Errorf("closed: got %v", got)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Siddarth2230/serial-tags/pkg/metrics"
)

func TestMetricsMiddleware_LabelsByRoute(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/{tag}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	counter := metrics.RequestTotal.WithLabelValues(http.MethodGet, "/{tag}", "404")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/3oa", "/b2", "/6eh5g28yq5mi7br"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestRouteTemplate_Unmatched(t *testing.T) {
	assert.Equal(t, "unmatched", routeTemplate(httptest.NewRequest(http.MethodGet, "/x", nil)))
}

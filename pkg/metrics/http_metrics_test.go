package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics("tradeflow", reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) })

	for _, path := range []string{"/ok", "/ok", "/missing"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("tradeflow", "GET", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("tradeflow", "GET", "/missing", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusCategory.WithLabelValues("tradeflow", "4xx", "GET", "/missing")))
}

func TestStatusCategory(t *testing.T) {
	assert.Equal(t, "2xx", statusCategory(201))
	assert.Equal(t, "5xx", statusCategory(502))
	assert.Equal(t, "", statusCategory(101))
}

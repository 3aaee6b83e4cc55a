package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/tradeflow/pkg/config"
	"go.uber.org/zap"
)

func TestInitLoggerReplacesGlobal(t *testing.T) {
	cfg := &config.Config{ServiceName: "tradeflow-test"}
	cfg.Server.Env = "production"
	cfg.Log.Level = "warn"

	require.NoError(t, InitLogger(cfg))
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	assert.Same(t, GetLogger(), zap.L())
	assert.False(t, GetLogger().Core().Enabled(zap.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zap.WarnLevel))
}

func TestFromContextPrefersEchoValue(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.NotNil(t, FromContext(c))

	scoped := zap.NewExample()
	c.Set(EchoKey, scoped)
	assert.Same(t, scoped, FromContext(c))
}

func TestFromCtx(t *testing.T) {
	scoped := zap.NewExample()
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromCtx(ctx))
	assert.NotNil(t, FromCtx(context.Background()))
}

func TestAttachReachesRequestContext(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	scoped := zap.NewExample()
	Attach(c, scoped)
	assert.Same(t, scoped, FromContext(c))
	assert.Same(t, scoped, FromCtx(c.Request().Context()))
}

package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mid "github.com/suteetoe/tradeflow/internal/middleware"
	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/internal/service"
	"github.com/suteetoe/tradeflow/pkg/config"
	"github.com/suteetoe/tradeflow/pkg/extractor"
	"github.com/suteetoe/tradeflow/pkg/jwtutil"
	"github.com/suteetoe/tradeflow/pkg/storage"
	"github.com/suteetoe/tradeflow/pkg/tokenstore"
	"github.com/suteetoe/tradeflow/pkg/upstream"
	"github.com/suteetoe/tradeflow/pkg/validator"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testServer struct {
	e  *echo.Echo
	db *gorm.DB
}

func newTestServer(t *testing.T, upstreamURL string) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	jwt := jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1, Issuer: "tradeflow"})
	authService := service.NewAuthService(db, jwt, tokenstore.NewMemoryBlacklist())

	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)
	runner := service.NewExtractionRunner(db, store, extractor.Disabled{}, 1, time.Second, zap.NewNop())

	upstreamCfg := config.UpstreamConfig{BaseURL: upstreamURL, Timeout: time.Second}

	e := echo.New()
	e.Validator = validator.New()
	e.Use(mid.RequestIDMiddleware)
	RegisterRoutes(e, &Handlers{
		Health:    NewHealthHandler(db),
		Auth:      NewAuthHandler(authService),
		Shipments: NewShipmentHandler(service.NewShipmentService(db)),
		Quotes:    NewQuoteHandler(service.NewQuoteService(db, nil)),
		Tracking:  NewTrackingHandler(service.NewTrackingService(db, nil)),
		Documents: NewDocumentHandler(service.NewDocumentService(db, store, runner, 1<<20, t.TempDir())),
		Carriers:  NewCarrierHandler(service.NewCarrierService(db, upstream.NewClient("carrier", upstreamCfg, zap.NewNop()))),
		Customs:   NewCustomsHandler(service.NewCustomsService(db, upstream.NewClient("customs", upstreamCfg, zap.NewNop()))),
	}, mid.JWTAuthMiddleware(jwt, authService))

	return &testServer{e: e, db: db}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// signup registers a user and returns its id and access token
func (s *testServer) signup(t *testing.T, role, name string) (string, string) {
	t.Helper()
	email := name + "@example.com"
	rec := s.do(t, http.MethodPost, "/auth/register", "", echo.Map{
		"email": email, "password": "s3cret-pass", "name": name, "phone": "+919876543210", "role": role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/login", "", echo.Map{"email": email, "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	return login.User.ID, login.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestShipmentQuoteTrackingFlow(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")

	_, supplierToken := s.signup(t, model.RoleSupplier, "supplier")
	buyerID, buyerToken := s.signup(t, model.RoleBuyer, "buyer")
	_, forwarderToken := s.signup(t, model.RoleForwarder, "forwarder")
	_, rivalToken := s.signup(t, model.RoleForwarder, "rival")

	rec := s.do(t, http.MethodPost, "/api/shipments", forwarderToken, echo.Map{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/shipments", supplierToken, echo.Map{
		"buyer_id": buyerID, "origin_port": "INMAA", "destination_port": "NLRTM",
		"goods_description": "Cotton yarn", "container_type": "40HC", "container_qty": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shipmentID := decode(t, rec)["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/shipments/"+shipmentID+"/request-quotes", supplierToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/shipments/open", forwarderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	quoteBody := echo.Map{
		"freight_amount_usd": 1500, "fuel_surcharge": "100.50", "validity_date": time.Now().Add(48 * time.Hour),
		"transit_time_days": 18, "routing": "INMAA - NLRTM", "container_type": "40HC", "container_quantity": 1,
	}
	rec = s.do(t, http.MethodPost, "/api/shipments/"+shipmentID+"/quotes", forwarderToken, quoteBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	quote := decode(t, rec)
	assert.Equal(t, "1600.5", quote["total_amount_usd"])
	quoteID := quote["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/shipments/"+shipmentID+"/quotes", rivalToken, echo.Map{"freight_amount_usd": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["code"])

	rec = s.do(t, http.MethodPost, "/api/shipments/"+shipmentID+"/quotes", rivalToken, quoteBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	rivalQuoteID := decode(t, rec)["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/shipments/"+shipmentID+"/accept-quote?quote_id="+quoteID, buyerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/shipments/"+shipmentID+"/accept-quote?quote_id="+quoteID, supplierToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ShipmentStatusQuoted, decode(t, rec)["shipment_status"])

	rec = s.do(t, http.MethodPost, "/api/shipments/"+shipmentID+"/accept-quote?quote_id="+rivalQuoteID, supplierToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", decode(t, rec)["code"])

	event := echo.Map{"status": "vessel_departed", "location": "Chennai", "description": "Vessel sailed", "is_milestone": true}
	rec = s.do(t, http.MethodPost, "/api/tracking/shipments/"+shipmentID+"/events", rivalToken, event)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tracking/shipments/"+shipmentID+"/events/latest", buyerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/tracking/shipments/"+shipmentID+"/events", forwarderToken, event)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/tracking/shipments/"+shipmentID, buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vessel_departed", decode(t, rec)["current_status"])

	rec = s.do(t, http.MethodGet, "/api/shipments/"+shipmentID+"/quotes", forwarderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quotes []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quotes))
	require.Len(t, quotes, 1)
	assert.Equal(t, "forwarder", quotes[0]["forwarder_name"])
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")
	_, token := s.signup(t, model.RoleBuyer, "buyer")

	rec := s.do(t, http.MethodPost, "/auth/register", "", echo.Map{
		"email": "buyer@example.com", "password": "s3cret-pass", "name": "dup", "phone": "+919876543210", "role": "buyer",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", echo.Map{"email": "buyer@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buyer@example.com", decode(t, rec)["email"])
	assert.NotContains(t, rec.Body.String(), "s3cret")

	rec = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadDocumentMultipart(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")
	_, supplierToken := s.signup(t, model.RoleSupplier, "supplier")
	buyerID, _ := s.signup(t, model.RoleBuyer, "buyer")

	rec := s.do(t, http.MethodPost, "/api/shipments", supplierToken, echo.Map{
		"buyer_id": buyerID, "origin_port": "INMAA", "destination_port": "SGSIN", "goods_description": "Tea leaves",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shipmentID := decode(t, rec)["id"].(string)

	upload := func(contentType string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("document_type", model.DocInvoice))
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="invoice.pdf"`}
		header["Content-Type"] = []string{contentType}
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/documents/shipments/"+shipmentID+"/upload", &body)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+supplierToken)
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		return rec
	}

	rec = upload("application/pdf")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode(t, rec)
	assert.Equal(t, "invoice.pdf", doc["file_name"])
	assert.Equal(t, model.ExtractionSkipped, doc["extraction_status"])

	rec = upload("text/html")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/documents/%s/extract", doc["id"]), supplierToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/documents/%s/autofill", doc["id"]), supplierToken, echo.Map{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCarrierProxySurfacesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tracking/container/MSKU1234567":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"containerNumber":"MSKU1234567","status":"IN_TRANSIT"}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"detail":"slow down"}`))
		}
	}))
	defer srv.Close()

	s := newTestServer(t, srv.URL)
	_, token := s.signup(t, model.RoleForwarder, "forwarder")

	rec := s.do(t, http.MethodGet, "/api/carriers/tracking/container/MSKU1234567", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"containerNumber":"MSKU1234567","status":"IN_TRANSIT"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/carriers/booking/status/BK1", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "slow down", decode(t, rec)["error"])
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.NotFound("missing"), http.StatusNotFound},
		{service.Forbidden("nope"), http.StatusForbidden},
		{service.Expired("late"), http.StatusBadRequest},
		{service.Conflict("dup"), http.StatusConflict},
		{service.Unavailable("off"), http.StatusServiceUnavailable},
		{&upstream.StatusError{Service: "carrier", StatusCode: http.StatusUnprocessableEntity, Detail: "bad"}, http.StatusUnprocessableEntity},
		{&upstream.StatusError{Service: "carrier", StatusCode: http.StatusOK, Detail: "unexpected"}, http.StatusBadGateway},
		{&upstream.StatusError{Service: "customs", StatusCode: http.StatusFound, Detail: "moved"}, http.StatusBadGateway},
		{&upstream.StatusError{Service: "customs", StatusCode: 0, Detail: "no status"}, http.StatusBadGateway},
		{fmt.Errorf("%w: carrier: dial tcp", upstream.ErrUnavailable), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, respondError(c, tc.err))
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, respondError(c, errors.New("secret database detail")))
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")
	rec := s.do(t, http.MethodGet, "/health?check=db", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["db_status"])
}

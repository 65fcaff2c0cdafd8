package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/transport-booking/internal/config"
)

const reportPath = "/v1/staff/reports/sales"

func reportKey(cfg config.CacheConfig, target string) string {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	c.SetPath(reportPath)
	return CacheKey(cfg, c)
}

func TestRedisCacheStoresThenServes(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1024}
	target := reportPath + "?from=2026-03-01&to=2026-03-31"
	key := reportKey(cfg, target)
	body := []byte(`{"grand_total":30000}`)
	payload, err := json.Marshal(cachedResponse{Status: http.StatusOK, ContentType: echo.MIMEApplicationJSON, Body: body})
	require.NoError(t, err)

	calls := 0
	e := echo.New()
	e.GET(reportPath, func(c echo.Context) error {
		calls++
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, body)
	}, NewRedisCache(cfg, rdb, nil))

	rmock.ExpectGet(key).RedisNil()
	rmock.ExpectSet(key, payload, time.Minute).SetVal("OK")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, string(body), rec.Body.String())

	rmock.ExpectGet(key).SetVal(string(payload))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, string(body), rec.Body.String())

	assert.Equal(t, 1, calls)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestRedisCacheSkipsErrors(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache"}
	target := reportPath + "?from=2026-03-31&to=2026-03-01"
	key := reportKey(cfg, target)

	e := echo.New()
	e.GET(reportPath, func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad period"})
	}, NewRedisCache(cfg, rdb, nil))

	rmock.ExpectGet(key).RedisNil()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCacheKeyVariesWithQuery(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache"}
	a := reportKey(cfg, reportPath+"?from=2026-01-01")
	b := reportKey(cfg, reportPath+"?from=2026-02-01")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, a)
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") },
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, nil),
	)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/schedules/3/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/schedules/:id/bookings")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:anon:route:POST /v1/schedules/:id/bookings", rateKey(cfg, c))

	c.Set(CtxUserID, uint64(12))
	c.Set(CtxRole, "CUSTOMER")
	assert.Equal(t, "rl:user:12:route:POST /v1/schedules/:id/bookings", rateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.9", rateKey(cfg, c))
}

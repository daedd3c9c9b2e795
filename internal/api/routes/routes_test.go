package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"mds-backend/internal/config"
	"mds-backend/internal/repository"
	"mds-backend/internal/services"
	"mds-backend/internal/websocket"
	"mds-backend/pkg/cache"
	appErrors "mds-backend/pkg/errors"
	"mds-backend/pkg/jwt"
	"mds-backend/pkg/ratelimit"
	"mds-backend/pkg/redis"
	"mds-backend/pkg/stream"
)

const (
	providerID = "5f7114d1-4091-46ee-b492-e55875f7de00"
	deviceID   = "ec551174-f324-4251-bfed-28d9f3f473fc"
	tripID     = "3a1bc8e2-5f4d-4c6b-9e7a-2b8c0d1e2f3a"
)

type testServer struct {
	router   *gin.Engine
	redis    *miniredis.Miniredis
	fanOut   *services.FanOut
	provider string
	reg      string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repository.NewPostgresStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	redisClient := redis.NewClient(config.RedisConfig{
		Host:         host,
		Port:         port,
		PoolSize:     4,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	t.Cleanup(func() { _ = redisClient.Close() })

	cacheManager := cache.NewRedisCacheManager(redisClient, cache.DefaultCacheConfig())
	redisStream := stream.NewRedisStream(redisClient, "mds:stream:", 1000)
	hub := websocket.NewHub(nil)
	hub.Start()
	t.Cleanup(hub.Stop)

	fanOut := services.NewFanOut().
		Add("cache", cacheManager).
		Add("stream", redisStream).
		Add("live", hub)

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		JWT:    config.JWTConfig{Secret: "secret", Expiry: time.Hour},
	}
	jwtUtil := jwt.NewJWTUtil(cfg.JWT.Secret, cfg.JWT.Expiry)

	router := SetupRoutes(Dependencies{
		Config:          cfg,
		Store:           store,
		Cache:           cacheManager,
		RedisClient:     redisClient,
		FanOut:          fanOut,
		Hub:             hub,
		AgencyService:   services.NewAgencyService(store, cacheManager, redisStream, fanOut),
		ProviderService: services.NewProviderService(store, cacheManager),
		JWT:             jwtUtil,
		RateLimiter:     ratelimit.NewMemoryLimiter(1000, 1000),
	})

	providerToken, err := jwtUtil.GenerateToken(providerID, jwt.ScopeAgency)
	require.NoError(t, err)
	regulatorToken, err := jwtUtil.GenerateToken("", jwt.ScopeRegulator)
	require.NoError(t, err)

	return &testServer{router: router, redis: mr, fanOut: fanOut, provider: providerToken, reg: regulatorToken}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func registration() map[string]interface{} {
	return map[string]interface{}{
		"device_id":        deviceID,
		"vehicle_id":       "test-id-1",
		"vehicle_type":     "scooter",
		"propulsion_types": []string{"electric"},
		"year":             2021,
		"mfgr":             "Special",
		"model":            "Anniversary",
	}
}

func tripStartBody(ts int64) map[string]interface{} {
	return map[string]interface{}{
		"event_types":   []string{"trip_start"},
		"vehicle_state": "on_trip",
		"trip_id":       tripID,
		"timestamp":     ts,
		"telemetry": map[string]interface{}{
			"timestamp": ts,
			"gps":       map[string]float64{"lat": 34.0522, "lng": -118.2437},
		},
	}
}

func TestAgencyFlow(t *testing.T) {
	s := newTestServer(t)
	ts := time.Now().UnixMilli()

	w := s.do(t, http.MethodPost, "/agency/vehicles", s.provider, registration())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/agency/vehicles", s.provider, registration())
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/agency/vehicles/"+deviceID, s.provider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]interface{}
	decode(t, w, &view)
	assert.Equal(t, "removed", view["state"])

	w = s.do(t, http.MethodPost, "/agency/vehicles/"+deviceID+"/event", s.provider, tripStartBody(ts))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result map[string]string
	decode(t, w, &result)
	assert.Equal(t, map[string]string{"device_id": deviceID, "state": "on_trip"}, result)

	w = s.do(t, http.MethodPost, "/agency/vehicles/"+deviceID+"/event", s.provider, tripStartBody(ts))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var mdsErr appErrors.MDSError
	decode(t, w, &mdsErr)
	assert.Equal(t, appErrors.CodeDuplicate, mdsErr.Code)

	w = s.do(t, http.MethodGet, "/agency/vehicles", s.provider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Vehicles []map[string]interface{} `json:"vehicles"`
	}
	decode(t, w, &list)
	require.Len(t, list.Vehicles, 1)
	assert.Equal(t, "on_trip", list.Vehicles[0]["state"])

	// cache and stream both saw the event
	assert.True(t, s.redis.Exists("mds:event:"+deviceID))
	assert.True(t, s.redis.Exists("mds:stream:event"))
	assert.Equal(t, int64(0), s.fanOut.Failures()["cache"])

	w = s.do(t, http.MethodPut, "/agency/vehicles/"+deviceID, s.provider, map[string]string{"vehicle_id": "test-id-2"})
	require.Equal(t, http.StatusOK, w.Code)
	var device map[string]interface{}
	decode(t, w, &device)
	assert.Equal(t, "test-id-2", device["vehicle_id"])
	assert.Equal(t, "on_trip", device["status"])
}

func TestAgencySubmitEventValidation(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/agency/vehicles", s.provider, registration()).Code)

	body := tripStartBody(time.Now().UnixMilli())
	delete(body, "trip_id")
	w := s.do(t, http.MethodPost, "/agency/vehicles/"+deviceID+"/event", s.provider, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var mdsErr appErrors.MDSError
	decode(t, w, &mdsErr)
	assert.Equal(t, appErrors.CodeMissingParam, mdsErr.Code)
	assert.Equal(t, "missing trip_id", mdsErr.Description)

	// rejected submissions are kept on the event error stream
	assert.True(t, s.redis.Exists("mds:stream:event_error"))

	w = s.do(t, http.MethodPost, "/agency/vehicles/"+deviceID+"/event", s.provider, `{"event_types": [`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &mdsErr)
	assert.Equal(t, appErrors.CodeBadParam, mdsErr.Code)

	w = s.do(t, http.MethodPost, "/agency/vehicles/a7c4a3f1-2d3b-4e5f-8a9b-0c1d2e3f4a5b/event", s.provider, tripStartBody(time.Now().UnixMilli()))
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &mdsErr)
	assert.Equal(t, appErrors.CodeUnregistered, mdsErr.Code)
}

func TestAgencySubmitTelemetry(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/agency/vehicles", s.provider, registration()).Code)

	ts := time.Now().UnixMilli()
	item := func(offset int64, lat float64) map[string]interface{} {
		return map[string]interface{}{
			"device_id": deviceID,
			"timestamp": ts + offset,
			"gps":       map[string]float64{"lat": lat, "lng": -118.2437},
		}
	}

	w := s.do(t, http.MethodPost, "/agency/vehicles/telemetry", s.provider, map[string]interface{}{
		"data": []interface{}{item(0, 34.05), item(1000, 0), item(2000, 34.06)},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.TelemetryResult
	decode(t, w, &result)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Unique)
	require.Len(t, result.Failures, 1)

	w = s.do(t, http.MethodPost, "/agency/vehicles/telemetry", s.provider, map[string]interface{}{
		"data": []interface{}{item(3000, 34.07)},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/agency/vehicles/telemetry", s.provider, map[string]interface{}{
		"data": []interface{}{item(4000, 0)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var mdsErr appErrors.MDSError
	decode(t, w, &mdsErr)
	assert.Equal(t, appErrors.CodeBadParam, mdsErr.Code)
	assert.NotNil(t, mdsErr.Details)

	w = s.do(t, http.MethodPost, "/agency/vehicles/telemetry", s.provider, map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &mdsErr)
	assert.Equal(t, appErrors.CodeMissingParam, mdsErr.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/agency/vehicles", "", nil).Code)
	// a regulator token carries no provider and cannot submit
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/agency/vehicles", s.reg, registration()).Code)
}

func TestProviderAPI(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/agency/vehicles", s.provider, registration()).Code)

	start := time.Now().UnixMilli()
	for i := int64(0); i < 3; i++ {
		w := s.do(t, http.MethodPost, "/agency/vehicles/"+deviceID+"/event", s.provider, map[string]interface{}{
			"event_types":   []string{"located"},
			"vehicle_state": "available",
			"timestamp":     start + i*1000,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/provider/vehicles", s.reg, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Vehicles []map[string]interface{} `json:"vehicles"`
	}
	decode(t, w, &list)
	require.Len(t, list.Vehicles, 1)
	assert.Equal(t, "available", list.Vehicles[0]["state"])

	path := fmt.Sprintf("/provider/status_changes?start_time=%d&end_time=%d", start, start+1000)
	w = s.do(t, http.MethodGet, path, s.reg, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var changes struct {
		StatusChanges []map[string]interface{} `json:"status_changes"`
	}
	decode(t, w, &changes)
	assert.Len(t, changes.StatusChanges, 2)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/provider/status_changes?start_time=%d&end_time=%d", start+1000, start), s.reg, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/provider/status_changes?limit=abc", s.reg, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	decode(t, w, &health)
	assert.Equal(t, "healthy", health["status"])
	checks := health["services"].(map[string]interface{})
	assert.Contains(t, checks, "store")
	assert.Contains(t, checks, "cache")
	assert.Contains(t, checks, "fanout")
	cacheCheck := checks["cache"].(map[string]interface{})
	assert.Contains(t, cacheCheck, "connectionStats")
	assert.Contains(t, cacheCheck["stats"], "hitRate")

	s.redis.Close()
	w = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

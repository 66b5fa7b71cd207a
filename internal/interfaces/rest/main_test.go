package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	infra "github.com/pot-code/speedread/internal/infrastructure"
	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/notify"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"github.com/pot-code/speedread/internal/progress"
	"github.com/pot-code/speedread/internal/reading"
	"github.com/pot-code/speedread/internal/session"
	"github.com/pot-code/speedread/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memoryKV struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}, counters: map[string]int64{}}
}

func (kv *memoryKV) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *memoryKV) Get(ctx context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.values[key]
	if !ok {
		return "", driver.ErrKeyNotFound
	}
	return v, nil
}

func (kv *memoryKV) Exists(ctx context.Context, key string) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.values[key]
	return ok, nil
}

func (kv *memoryKV) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.counters[key]++
	return kv.counters[key], window, nil
}

func (kv *memoryKV) Ping(ctx context.Context) error { return nil }

func (kv *memoryKV) Close() error { return nil }

func newConfig() *infra.AppConfig {
	cfg := new(infra.AppConfig)
	cfg.AppID = "speedread"
	cfg.Version = "test"
	cfg.Env = infra.EnvProduction
	cfg.SessionTimeout = 30 * time.Minute
	cfg.SessionRefresh = 5 * time.Minute
	cfg.RequestTimeout = 5 * time.Second
	cfg.Security.JWTMethod = "HS256"
	cfg.Security.JWTSecret = "s3cret"
	cfg.Security.TokenName = "speedread_token"
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.RetryTimeout = time.Minute
	cfg.RateLimit.Window = 15 * time.Minute
	cfg.RateLimit.Max = 100
	cfg.RateLimit.AuthMax = 5
	return cfg
}

func newTestServer(t *testing.T, cfg *infra.AppConfig) *echo.Echo {
	t.Helper()
	ctx := context.Background()
	db, err := driver.GetDBConnection(&driver.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "rest.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(ctx) })

	ids := &uuid.NanoIDGenerator{Length: 16}
	users := user.NewUserSQL(db, ids)
	sessions := session.NewSessionSQL(db)
	progressRepo := progress.NewProgressSQL(db)
	require.NoError(t, users.Migrate(ctx))
	require.NoError(t, sessions.Migrate(ctx))
	require.NoError(t, progressRepo.Migrate(ctx))

	uuc := user.NewUserUseCase(users, cfg.Security.MaxLoginAttempts, cfg.Security.RetryTimeout)
	uuc.HashCost = bcrypt.MinCost
	puc := progress.NewProgressUseCase(progressRepo, progress.NewAggregator(time.UTC), progress.DefaultCatalog(), 3)
	hub := notify.NewHub(nil)
	suc := session.NewSessionUseCase(sessions, puc, reading.NewCalculator(0), ids, hub, false)

	return NewServer(&ServerOption{
		Config:          cfg,
		Store:           db,
		KV:              newMemoryKV(),
		UserUseCase:     uuc,
		SessionUseCase:  suc,
		ProgressUseCase: puc,
		Hub:             hub,
		Logger:          zap.NewNop(),
	})
}

func do(app *echo.Echo, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func signIn(t *testing.T, app *echo.Echo) *http.Cookie {
	t.Helper()
	rec := do(app, http.MethodPost, "/api/v1/user/sign-up", `{"username":"reader","email":"reader@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(app, http.MethodPost, "/api/v1/user/login", `{"username":"reader","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "speedread_token" {
			return c
		}
	}
	t.Fatal("no token cookie")
	return nil
}

const validSession = `{
	"activity_id": "a1",
	"start_time": "2024-03-04T09:00:00Z",
	"end_time": "2024-03-04T09:00:40Z",
	"total_words": 200,
	"word_events": [{"word_index": 0, "displayed_at_offset_ms": 0}],
	"answers": [
		{"question_index": 0, "correct": true},
		{"question_index": 1, "correct": true},
		{"question_index": 2, "correct": false}
	]
}`

func TestSessionFlow(t *testing.T) {
	app := newTestServer(t, newConfig())
	token := signIn(t, app)

	rec := do(app, http.MethodPost, "/api/v1/sessions", validSession, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotContains(t, body, "warning")
	sess := body["session"].(map[string]interface{})
	assert.Equal(t, 300.0, sess["metrics"].(map[string]interface{})["wpm"])
	stats := body["progress"].(map[string]interface{})["statistics"].(map[string]interface{})
	assert.Equal(t, 1.0, stats["total_sessions"])
	assert.Len(t, body["unlocked_achievements"], 2)

	rec = do(app, http.MethodGet, "/api/v1/sessions/"+sess["id"].(string), "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", decode(t, rec)["activity_id"])

	rec = do(app, http.MethodGet, "/api/v1/sessions?page=1&page_size=5", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(app, http.MethodGet, "/api/v1/progress", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["version"])

	rec = do(app, http.MethodGet, "/api/v1/progress/achievements", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	require.Len(t, catalog, len(progress.DefaultCatalog()))
	assert.Equal(t, "first_session", catalog[0]["id"])
	assert.Equal(t, true, catalog[0]["unlocked"])

	rec = do(app, http.MethodGet, "/api/v1/progress/leaderboard?limit=3", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var board []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board, 1)
	assert.Equal(t, 300.0, board[0]["average_wpm"])
}

func TestSessionErrors(t *testing.T) {
	app := newTestServer(t, newConfig())
	token := signIn(t, app)

	noContent := strings.Replace(validSession, `"total_words": 200`, `"total_words": 0`, 1)
	rec := do(app, http.MethodPost, "/api/v1/sessions", noContent, token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_content", decode(t, rec)["type"])

	backwards := strings.Replace(validSession, `"end_time": "2024-03-04T09:00:40Z"`, `"end_time": "2024-03-04T08:00:00Z"`, 1)
	rec = do(app, http.MethodPost, "/api/v1/sessions", backwards, token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_duration", decode(t, rec)["type"])

	implausible := strings.Replace(validSession, `"total_words": 200`, `"total_words": 5000`, 1)
	rec = do(app, http.MethodPost, "/api/v1/sessions", implausible, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, reading.ErrImplausibleReading.Error(), decode(t, rec)["warning"])

	earlier := strings.NewReplacer("2024-03-04T09:00:00Z", "2024-03-01T09:00:00Z", "2024-03-04T09:00:40Z", "2024-03-01T09:00:40Z").Replace(validSession)
	rec = do(app, http.MethodPost, "/api/v1/sessions", earlier, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "out_of_order_session", decode(t, rec)["type"])

	rec = do(app, http.MethodPost, "/api/v1/sessions", `{"activity_id": "a1"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation", body["type"])
	assert.NotEmpty(t, body["invalid_params"])

	huge := strings.Replace(validSession, `"total_words": 200`, `"total_words": 1000000000000000`, 1)
	rec = do(app, http.MethodPost, "/api/v1/sessions", huge, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["type"])

	rec = do(app, http.MethodPost, "/api/v1/sessions", `{not json`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(app, http.MethodGet, "/api/v1/sessions/missing", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(app, http.MethodGet, "/api/v1/sessions?page=zero", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGoals(t *testing.T) {
	app := newTestServer(t, newConfig())
	token := signIn(t, app)

	rec := do(app, http.MethodPut, "/api/v1/progress/goals", `{"target_wpm": 450, "target_comprehension": 80, "daily_reading_minutes": 20, "weekly_sessions": 5}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	goals := decode(t, rec)["goals"].(map[string]interface{})
	assert.Equal(t, 450.0, goals["target_wpm"])

	rec = do(app, http.MethodPut, "/api/v1/progress/goals", `{"target_comprehension": 120}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth(t *testing.T) {
	app := newTestServer(t, newConfig())

	rec := do(app, http.MethodGet, "/api/v1/progress", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["type"])

	token := signIn(t, app)
	assert.True(t, token.HttpOnly)
	assert.True(t, token.Secure)

	rec = do(app, http.MethodPost, "/api/v1/user/sign-up", `{"username":"reader","email":"other@example.com","password":"correct horse"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(app, http.MethodPost, "/api/v1/user/sign-up", `{"username":"x","email":"not-an-email","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode(t, rec)["invalid_params"], 3)

	rec = do(app, http.MethodPost, "/api/v1/user/login", `{"username":"reader","password":"wrong password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(app, http.MethodGet, "/api/v1/user/exists?email=reader@example.com", "")
	assert.Equal(t, "true", strings.TrimSpace(rec.Body.String()))
	rec = do(app, http.MethodGet, "/api/v1/user/exists", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(app, http.MethodPut, "/api/v1/user/sign-out", "", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(app, http.MethodGet, "/api/v1/progress", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "revoked token")
}

func TestAuthRateLimit(t *testing.T) {
	app := newTestServer(t, newConfig())

	for i := 0; i < 5; i++ {
		rec := do(app, http.MethodPost, "/api/v1/user/login", `{"username":"nobody","password":"whatever"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"), "the tighter auth limiter reports last")
	}
	rec := do(app, http.MethodPost, "/api/v1/user/login", `{"username":"nobody","password":"whatever"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode(t, rec)["type"])

	rec = do(app, http.MethodGet, "/api/v1/user/exists?username=reader", "")
	assert.Equal(t, http.StatusOK, rec.Code, "other routes only count against the api limit")
}

func TestStatusAndProbes(t *testing.T) {
	app := newTestServer(t, newConfig())

	rec := do(app, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(app, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "speedread", body["app_id"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, infra.EnvProduction, body["env"])

	rec = do(app, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 404.0, decode(t, rec)["code"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

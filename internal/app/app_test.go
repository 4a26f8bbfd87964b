package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/config"
	"github.com/jwalitptl/telehealth-admin/internal/repository/memory"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
	memorybroker "github.com/jwalitptl/telehealth-admin/pkg/messaging/memory"
)

// roleResolver authenticates requests carrying X-Role as user-1.
type roleResolver struct{}

func (roleResolver) Resolve(r *http.Request) (auth.Session, error) {
	role := r.Header.Get("X-Role")
	if role == "" {
		return auth.Anonymous(), nil
	}
	return auth.Authenticated("user-1", auth.Role(role)), nil
}

type envelope struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Count   int  `json:"count"`
		HasMore bool `json:"has_more"`
	} `json:"pagination"`
}

func newTestApp(t *testing.T) (*App, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	store := memory.NewStore()
	reg, m := NewMetrics()
	a := New(cfg, store, memorybroker.NewBroker(10), roleResolver{}, logger.Nop(), reg, m)
	t.Cleanup(func() { _ = a.Close() })
	return a, store
}

func do(a *App, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	w := httptest.NewRecorder()
	a.Router.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	a, store := newTestApp(t)

	w := do(a, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	store.FailWith(errors.New("down"))
	w = do(a, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"DOWN"`)
}

func TestPatientLifecycle(t *testing.T) {
	a, _ := newTestApp(t)

	w := do(a, http.MethodPost, "/api/v1/patients", "staff", map[string]interface{}{
		"first_name": " Ada ",
		"last_name":  "Lovelace",
		"email":      "ADA@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, "success", env.Status)

	var created struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, "pending", created.Status)

	w = do(a, http.MethodGet, "/api/v1/patients?filter="+url.QueryEscape("status:==:pending"), "staff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.Count)
	assert.False(t, env.Pagination.HasMore)

	w = do(a, http.MethodPatch, "/api/v1/patients/"+created.ID, "staff", map[string]interface{}{"status": "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"active"`)

	w = do(a, http.MethodGet, "/api/v1/audit-logs?filter="+url.QueryEscape("entity_id:==:"+created.ID), "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, 2, env.Pagination.Count)
}

func TestBadFilterIsRejected(t *testing.T) {
	a, _ := newTestApp(t)

	w := do(a, http.MethodGet, "/api/v1/patients?filter=status", "staff", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decode(t, w).Status)
}

func TestAuditLogsRequireAdmin(t *testing.T) {
	a, _ := newTestApp(t)

	assert.Equal(t, http.StatusUnauthorized, do(a, http.MethodGet, "/api/v1/audit-logs", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(a, http.MethodGet, "/api/v1/audit-logs", "staff", nil).Code)
	assert.Equal(t, http.StatusOK, do(a, http.MethodGet, "/api/v1/audit-logs", "admin", nil).Code)
}

func TestMonitoringIngest(t *testing.T) {
	a, _ := newTestApp(t)

	w := do(a, http.MethodPost, "/api/v1/monitoring/events", "", map[string]interface{}{
		"events": []map[string]interface{}{
			{"level": "info", "name": "page_view", "message": "dashboard opened"},
			{"level": "warning", "name": "slow_render", "message": "chart took 3s"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"accepted":2`)

	events, _ := a.Monitor.Pending()
	assert.Equal(t, 2, events)

	w = do(a, http.MethodPost, "/api/v1/monitoring/events", "", map[string]interface{}{
		"events": []map[string]interface{}{{"level": "fatal", "name": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerErrorsAreCaptured(t *testing.T) {
	a, store := newTestApp(t)

	store.FailWith(errors.New("disk full"))
	w := do(a, http.MethodGet, "/api/v1/patients", "staff", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")

	events, _ := a.Monitor.Pending()
	assert.Equal(t, 1, events)
}

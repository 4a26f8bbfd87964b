package form

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/forms"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/service/form"
	"github.com/jwalitptl/telehealth-admin/internal/service/servicetest"
)

const intakeSchema = `{
  "title": "Patient intake",
  "pages": [{
    "id": "basics",
    "title": "Basics",
    "elements": [
      {"id": "fullName", "type": "text", "label": "Full name", "required": true},
      {"id": "hasAllergy", "type": "radio", "label": "Any allergies?", "options": ["yes", "no"]},
      {"id": "allergyDetails", "type": "textarea", "label": "Allergy details",
       "conditionalLogic": {"field": "hasAllergy", "operator": "equals", "value": "yes", "action": "require"}}
    ]
  }]
}`

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	env := servicetest.NewEnv()
	svc := form.NewService(servicetest.Collection[model.Form](env, model.CollectionForms), env.Deps, nil)

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestValidateSchemaEndpoint(t *testing.T) {
	r := setupRouter()

	w, env := do(t, r, http.MethodPost, "/api/v1/forms/validate", intakeSchema)
	require.Equal(t, http.StatusOK, w.Code)
	var res forms.SchemaResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Valid)

	w, env = do(t, r, http.MethodPost, "/api/v1/forms/validate", `{"title":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	w, _ = do(t, r, http.MethodPost, "/api/v1/forms/validate", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePublishEvaluate(t *testing.T) {
	r := setupRouter()

	w, env := do(t, r, http.MethodPost, "/api/v1/forms", `{"pages":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "error", env.Status)

	w, env = do(t, r, http.MethodPost, "/api/v1/forms", intakeSchema)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var f model.Form
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, model.FormStatusDraft, f.Status)

	w, env = do(t, r, http.MethodPost, "/api/v1/forms/"+f.ID+"/publish", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, model.FormStatusPublished, f.Status)

	w, _ = do(t, r, http.MethodPatch, "/api/v1/forms/"+f.ID, `{"title":"changed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = do(t, r, http.MethodPost, "/api/v1/forms/"+f.ID+"/evaluate",
		`{"data":{"fullName":"Jane Doe","hasAllergy":"yes"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res forms.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "allergyDetails", res.Errors[0].FieldID)
	assert.True(t, res.States["allergyDetails"].Required)

	w, _ = do(t, r, http.MethodPost, "/api/v1/forms/missing/evaluate", `{"data":{}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodPost, "/api/v1/forms/"+f.ID+"/archive", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, model.FormStatusArchived, f.Status)
}

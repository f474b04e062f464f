package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
	"github.com/noah-isme/project-submission-api/pkg/logger"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.token = token
	return s.claims, s.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/reports/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString(logger.ActorKey)})
	})
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/reports/r1", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAcceptsBearerToken(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}}
	w := serve(newRouter(JWT(validator)), "Bearer abc.def")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc.def", validator.token)
	assert.Contains(t, w.Body.String(), `"actor":"stu-1"`)
}

func TestJWTRejections(t *testing.T) {
	cases := []struct {
		name      string
		header    string
		validator *stubValidator
	}{
		{"missing header", "", &stubValidator{}},
		{"wrong scheme", "Basic abc", &stubValidator{}},
		{"invalid token", "Bearer abc", &stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}},
		{"unknown role", "Bearer abc", &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: "JANITOR"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(newRouter(JWT(tc.validator)), tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestJWTPassesThroughInternalErrors(t *testing.T) {
	w := serve(newRouter(JWT(&stubValidator{err: errors.New("boom")})), "Bearer abc")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func TestRequireOperationFollowsAccessTable(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		op     access.Operation
		code   int
	}{
		{"student submits", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, access.OpSubmit, http.StatusOK},
		{"admin cannot submit", &models.JWTClaims{UserID: "a1", Role: models.RoleGeneralAdmin}, access.OpSubmit, http.StatusForbidden},
		{"supervisor records feedback", &models.JWTClaims{UserID: "v1", Role: models.RoleSupervisor}, access.OpRecordFeedback, http.StatusOK},
		{"hod cannot record feedback", &models.JWTClaims{UserID: "h1", Role: models.RoleHOD}, access.OpRecordFeedback, http.StatusForbidden},
		{"hod exports progress", &models.JWTClaims{UserID: "h1", Role: models.RoleHOD}, access.OpExportProgress, http.StatusOK},
		{"student cannot export", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, access.OpExportProgress, http.StatusForbidden},
		{"coordinator assigns", &models.JWTClaims{UserID: "c1", Role: models.RoleLevelCoordinator}, access.OpAssign, http.StatusOK},
		{"missing claims", nil, access.OpViewReport, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(newRouter(withClaims(tc.claims), RequireOperation(tc.op)), "")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestRequireOperationAcceptsAnyListedOperation(t *testing.T) {
	guard := RequireOperation(access.OpAssign, access.OpViewActivity)

	w := serve(newRouter(withClaims(&models.JWTClaims{UserID: "a1", Role: models.RoleGeneralAdmin}), guard), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(newRouter(withClaims(&models.JWTClaims{UserID: "v1", Role: models.RoleSupervisor}), guard), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type stubUserLoader struct {
	users map[string]models.User
	err   error
}

func (s *stubUserLoader) FindByID(_ context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func TestLoadActorUsesStoredScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	loader := &stubUserLoader{users: map[string]models.User{
		"h1": {ID: "h1", Role: models.RoleHOD, Department: "EE", Active: true},
	}}
	var seen *models.JWTClaims
	router := gin.New()
	router.Use(withClaims(&models.JWTClaims{UserID: "h1", Role: models.RoleHOD, Department: "CS"}), LoadActor(loader))
	router.GET("/reports/:id", func(c *gin.Context) {
		seen, _ = currentClaims(c)
		c.Status(http.StatusOK)
	})

	w := serve(router, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "EE", seen.Department)
	assert.False(t, access.CanPerform(access.Actor{ID: seen.UserID, Role: seen.Role, Department: seen.Department}, access.OpViewReport, access.Resource{Department: "CS"}))
}

func TestLoadActorDemotedRoleLosesOperation(t *testing.T) {
	loader := &stubUserLoader{users: map[string]models.User{
		"c1": {ID: "c1", Role: models.RoleSupervisor, Active: true},
	}}
	claims := &models.JWTClaims{UserID: "c1", Role: models.RoleLevelCoordinator, Level: "400"}

	w := serve(newRouter(withClaims(claims), LoadActor(loader), RequireOperation(access.OpAssign)), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoadActorRejections(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		loader *stubUserLoader
		code   int
	}{
		{"deactivated account", &models.JWTClaims{UserID: "h1", Role: models.RoleHOD, Department: "CS"},
			&stubUserLoader{users: map[string]models.User{"h1": {ID: "h1", Role: models.RoleHOD, Department: "CS", Active: false}}}, http.StatusForbidden},
		{"deleted account", &models.JWTClaims{UserID: "gone", Role: models.RoleStudent}, &stubUserLoader{}, http.StatusUnauthorized},
		{"no claims", nil, &stubUserLoader{}, http.StatusUnauthorized},
		{"store failure", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, &stubUserLoader{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(newRouter(withClaims(tc.claims), LoadActor(tc.loader)), "")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var captured map[string]interface{}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		captured = ExtractMeta(c)
	})
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, captured)
	assert.Equal(t, true, captured["cache_hit"])
	assert.Contains(t, captured, "processing_time_ms")
	assert.Nil(t, ExtractMeta(nil))
}

type recordingObserver struct {
	routes []string
	codes  []int
}

func (r *recordingObserver) ObserveHTTPRequest(_ string, path string, status int, _ time.Duration) {
	r.routes = append(r.routes, path)
	r.codes = append(r.codes, status)
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	router := newRouter(Metrics(observer))

	serve(router, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, []string{"/reports/:id", "unmatched"}, observer.routes)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, observer.codes)
}

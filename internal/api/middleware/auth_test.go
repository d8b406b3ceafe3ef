package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkup/printq/internal/api/middleware"
	"github.com/walkup/printq/internal/db"
)

func setupAuth(t *testing.T) (*gin.Engine, *middleware.AuthMiddleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	require.NoError(t, db.Init(db.Config{Path: filepath.Join(t.TempDir(), "test.db")}))
	t.Cleanup(func() { db.Close() })

	auth, err := middleware.NewAuthMiddleware()
	require.NoError(t, err)

	router := gin.New()
	api := router.Group("/api")
	auth.RegisterRoutes(api)
	api.GET("/protected", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router, auth
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, _ := http.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func authCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "printq_auth" && c.Value != "" {
			return c
		}
	}
	t.Fatal("auth cookie not set")
	return nil
}

func TestSetupThenLogin(t *testing.T) {
	router, _ := setupAuth(t)

	// Fresh install reports setup required.
	req, _ := http.NewRequest("GET", "/api/auth/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"setup_required":true`)

	// Too short a password is rejected.
	w = postJSON(t, router, "/api/auth/setup", map[string]string{"password": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/auth/setup", map[string]string{"password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)
	authCookie(t, w)

	// Second setup attempt is refused.
	w = postJSON(t, router, "/api/auth/setup", map[string]string{"password": "other-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/auth/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(t, router, "/api/auth/login", map[string]string{"password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)
	cookie := authCookie(t, w)

	// The cookie opens the protected route.
	req, _ = http.NewRequest("GET", "/api/protected", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	router, _ := setupAuth(t)

	req, _ := http.NewRequest("GET", "/api/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("GET", "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerTokenAccepted(t *testing.T) {
	router, _ := setupAuth(t)

	w := postJSON(t, router, "/api/auth/setup", map[string]string{"password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)
	cookie := authCookie(t, w)

	// The cookie value doubles as a bearer token for non-browser clients.
	req, _ := http.NewRequest("GET", "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginBeforeSetup(t *testing.T) {
	router, _ := setupAuth(t)

	w := postJSON(t, router, "/api/auth/login", map[string]string{"password": "whatever1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

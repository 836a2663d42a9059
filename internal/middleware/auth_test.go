package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videovault/internal/access"
	"videovault/internal/domain/user"
	"videovault/internal/pkg/jwt"
)

type fakeUsers map[int64]*user.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

type downUsers struct{}

func (downUsers) GetByID(context.Context, int64) (*user.User, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/protected", func(c *gin.Context) {
		ident, ok := Identity(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "user_id": ident.ID, "role": ident.Role})
	})
	return router
}

func TestJWTAuth_ValidToken(t *testing.T) {
	jwtService := jwt.New("test-secret-123", time.Hour)
	validToken, err := jwtService.GenerateToken(42, "editor")
	require.NoError(t, err)

	router := newAuthRouter(JWTAuth(jwtService, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+validToken)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "42")
	assert.Contains(t, w.Body.String(), "editor")
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	router := newAuthRouter(JWTAuth(jwt.New("wrong-secret", time.Hour), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid-jwt-here")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestJWTAuth_NoToken(t *testing.T) {
	router := newAuthRouter(JWTAuth(jwt.New("secret", time.Hour), nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_HEADER_MISSING")
}

func TestJWTAuth_WrongFormat(t *testing.T) {
	router := newAuthRouter(JWTAuth(jwt.New("secret", time.Hour), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dGVzdA==")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_AUTH_FORMAT")
}

func TestJWTAuth_IgnoresQueryToken(t *testing.T) {
	jwtService := jwt.New("secret", time.Hour)
	token, _ := jwtService.GenerateToken(1, "viewer")
	router := newAuthRouter(JWTAuth(jwtService, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthWithQuery_AcceptsBothSources(t *testing.T) {
	jwtService := jwt.New("secret", time.Hour)
	token, _ := jwtService.GenerateToken(5, "viewer")
	router := newAuthRouter(JWTAuthWithQuery(jwtService, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?token=forged", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_MISSING")
}

func TestJWTAuth_RoleComesFromLookup(t *testing.T) {
	jwtService := jwt.New("secret", time.Hour)
	token, _ := jwtService.GenerateToken(9, "admin")
	users := fakeUsers{9: {ID: 9, Role: user.RoleViewer}}
	router := newAuthRouter(JWTAuth(jwtService, users))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"viewer"`)
}

func TestJWTAuth_DeletedUser(t *testing.T) {
	jwtService := jwt.New("secret", time.Hour)
	token, _ := jwtService.GenerateToken(9, "editor")
	router := newAuthRouter(JWTAuth(jwtService, fakeUsers{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "USER_NOT_FOUND")
}

func TestRequireAction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtService := jwt.New("secret", time.Hour)
	guard := access.NewGuard()

	router := gin.New()
	router.Use(JWTAuth(jwtService, nil))
	router.POST("/upload", RequireAction(guard, access.ActionUpload), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	do := func(role string) *httptest.ResponseRecorder {
		token, _ := jwtService.GenerateToken(3, role)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, do("editor").Code)
	assert.Equal(t, http.StatusCreated, do("admin").Code)

	w := do("viewer")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient role")
}

func TestJWTAuth_UserLookupFailureIsInternal(t *testing.T) {
	jwtService := jwt.New("test-secret-123", time.Hour)
	token, err := jwtService.GenerateToken(42, "editor")
	require.NoError(t, err)

	for name, mw := range map[string]gin.HandlerFunc{
		"header":       JWTAuth(jwtService, downUsers{}),
		"header+query": JWTAuthWithQuery(jwtService, downUsers{}),
	} {
		t.Run(name, func(t *testing.T) {
			router := newAuthRouter(mw)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
			assert.NotContains(t, w.Body.String(), "USER_NOT_FOUND")
		})
	}
}

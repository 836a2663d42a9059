package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"videovault/internal/database"
	"videovault/internal/domain/user"
	"videovault/internal/middleware"
	"videovault/internal/pkg/jwt"
)

func newTestService(t *testing.T) (*Service, *jwt.Service, *user.Repository) {
	t.Helper()
	db, err := database.Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	users := user.NewRepository(db)
	jwtService := jwt.New("auth-secret", time.Hour)
	svc := NewService(users, jwtService, zap.NewNop())
	svc.cost = bcrypt.MinCost
	return svc, jwtService, users
}

func TestRegister_DefaultsToEditor(t *testing.T) {
	svc, jwtService, _ := newTestService(t)

	res, err := svc.Register(context.Background(), RegisterRequest{Username: "ana", Email: " Ana@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleEditor, res.User.Role)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, "default", res.User.Organization)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	claims, err := jwtService.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "editor", claims.Role)
}

func TestRegister_RoleRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterRequest{Username: "vic", Email: "v@example.com", Password: "secret1", Role: "viewer"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleViewer, res.User.Role)

	_, err = svc.Register(ctx, RegisterRequest{Username: "boss", Email: "b@example.com", Password: "secret1", Role: "admin"})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = svc.Register(ctx, RegisterRequest{Username: "vic2", Email: "v@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, LoginRequest{Email: "ANA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHandler_RegisterLoginMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, jwtService, users := newTestService(t)
	h := NewHandler(svc, zap.NewNop())

	router := gin.New()
	api := router.Group("/api")
	h.RegisterPublicRoutes(api)
	h.RegisterProtectedRoutes(api.Group("", middleware.JWTAuth(jwtService, users)))

	post := func(path string, body any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post("/api/auth/register", RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, http.StatusConflict, post("/api/auth/register", RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "secret1"}).Code)
	assert.Equal(t, http.StatusBadRequest, post("/api/auth/register", RegisterRequest{Username: "x", Email: "bad", Password: "1"}).Code)
	assert.Equal(t, http.StatusUnauthorized, post("/api/auth/login", LoginRequest{Email: "ana@example.com", Password: "nope"}).Code)

	w = post("/api/auth/login", LoginRequest{Email: "ana@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.Token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ana@example.com")
	assert.NotContains(t, w.Body.String(), "password")
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"genstudio/internal/auth"
	"genstudio/internal/entity"
	"genstudio/internal/model"
)

// stubUserRepo implements only the user lookup the middleware needs; every
// other Repository method panics if reached.
type stubUserRepo struct {
	model.Repository
	users map[uint]*entity.DbUser
}

func (s *stubUserRepo) GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func newAuthTestHandler(t *testing.T, users ...*entity.DbUser) *HTTPHandler {
	t.Helper()
	mgr, err := auth.NewManager("middleware-test-secret", "genstudio", time.Hour)
	if err != nil {
		t.Fatalf("failed to create auth manager: %v", err)
	}
	repo := &stubUserRepo{users: make(map[uint]*entity.DbUser)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return &HTTPHandler{repo: repo, authManager: mgr}
}

func performAuthRequest(h *HTTPHandler, authHeader string) (*httptest.ResponseRecorder, *entity.DbUser) {
	gin.SetMode(gin.TestMode)
	var seen *entity.DbUser
	r := gin.New()
	r.GET("/protected", h.AuthMiddleware(), func(c *gin.Context) {
		seen = CurrentUser(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	user := &entity.DbUser{ID: 7, Email: "user@example.com", Role: entity.UserRoleUser, Plan: entity.PlanFree, IsActive: true}
	h := newAuthTestHandler(t, user)

	token, _, err := h.authManager.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	w, seen := performAuthRequest(h, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if seen == nil || seen.ID != user.ID {
		t.Fatalf("expected current user %d, got %+v", user.ID, seen)
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	h := newAuthTestHandler(t)
	w, _ := performAuthRequest(h, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	h := newAuthTestHandler(t)
	w, _ := performAuthRequest(h, "Token abc")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	h := newAuthTestHandler(t)
	w, _ := performAuthRequest(h, "Bearer not-a-real-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsDeletedUser(t *testing.T) {
	user := &entity.DbUser{ID: 9, Email: "gone@example.com", Role: entity.UserRoleUser, IsActive: true}
	h := newAuthTestHandler(t)

	token, _, err := h.authManager.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	w, _ := performAuthRequest(h, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsDisabledUser(t *testing.T) {
	user := &entity.DbUser{ID: 3, Email: "off@example.com", Role: entity.UserRoleUser, IsActive: false}
	h := newAuthTestHandler(t, user)

	token, _, err := h.authManager.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	w, _ := performAuthRequest(h, "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &HTTPHandler{}

	run := func(user *entity.DbUser) int {
		r := gin.New()
		r.GET("/admin", func(c *gin.Context) {
			if user != nil {
				c.Set(currentUserContextKey, user)
			}
		}, h.RequireAdmin(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
		return w.Code
	}

	if code := run(&entity.DbUser{Role: entity.UserRoleSuperAdmin}); code != http.StatusOK {
		t.Errorf("expected super admin to pass, got %d", code)
	}
	if code := run(&entity.DbUser{Role: entity.UserRoleAdmin}); code != http.StatusOK {
		t.Errorf("expected admin to pass, got %d", code)
	}
	if code := run(&entity.DbUser{Role: entity.UserRoleUser}); code != http.StatusForbidden {
		t.Errorf("expected regular user to be blocked, got %d", code)
	}
	if code := run(nil); code != http.StatusForbidden {
		t.Errorf("expected anonymous to be blocked, got %d", code)
	}
}

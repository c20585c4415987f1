package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "role": GetRole(c)})
	})
	return r
}

func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxRole, role)
		c.Next()
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{"COACH", http.StatusOK},
		{"ADMIN", http.StatusOK},
		{"ATHLETE", http.StatusForbidden},
		{"", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			r := newTestRouter(withRole(tt.role), RequireRole(domain.RoleCoach, domain.RoleAdmin))
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestJWTAuth(t *testing.T) {
	manager := jwt.NewManager("test-secret-0123456789", 900)
	token, err := manager.GenerateAccessToken("athlete-1", "ATHLETE", "Amy")
	assert.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		ws     bool
		want   int
	}{
		{"valid bearer", "Bearer " + token, "", false, http.StatusOK},
		{"missing header", "", "", false, http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, "", false, http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", "", false, http.StatusUnauthorized},
		{"query token on websocket", "", token, true, http.StatusOK},
		{"query token on plain request", "", token, false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(JWTAuth(manager))
			w := httptest.NewRecorder()
			url := "/test"
			if tt.query != "" {
				url += "?access_token=" + tt.query
			}
			req, _ := http.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.ws {
				req.Header.Set("Upgrade", "websocket")
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"user_id":"athlete-1"`)
				assert.Contains(t, w.Body.String(), `"role":"ATHLETE"`)
			}
		})
	}
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := newTestRouter(RequestLogger())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(headerRequestID, "abc123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(headerRequestID))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(headerRequestID), 8)
}

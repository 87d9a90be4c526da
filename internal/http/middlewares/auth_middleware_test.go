package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spendtrack/spendtrack/internal/auth"
	"github.com/spendtrack/spendtrack/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f *fakeVerifier) VerifySessionToken(token string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func protectedRouter(v middlewares.TokenVerifier) *gin.Engine {
	r := gin.New()

	mw := middlewares.NewAuthMiddleware(v)

	r.GET("/protected", mw.RequireAuth(), func(c *gin.Context) {
		id, ok := middlewares.UserIDFromContext(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no identity on context")
			return
		}
		c.String(http.StatusOK, strconv.FormatInt(id, 10))
	})

	return r
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		verifier   *fakeVerifier
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing header is 401",
			authHeader: "",
			verifier:   &fakeVerifier{},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "no_token",
		},
		{
			name:       "non-bearer header is 401",
			authHeader: "Basic abc123",
			verifier:   &fakeVerifier{},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "no_token",
		},
		{
			name:       "empty bearer value is 401",
			authHeader: "Bearer ",
			verifier:   &fakeVerifier{},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "no_token",
		},
		{
			name:       "unverifiable token is 403",
			authHeader: "Bearer bogus",
			verifier:   &fakeVerifier{err: errors.New("boom")},
			wantStatus: http.StatusForbidden,
			wantBody:   "invalid_token",
		},
		{
			name:       "valid token passes identity through",
			authHeader: "Bearer good",
			verifier:   &fakeVerifier{claims: &auth.Claims{UserID: 42, Email: "a@gmail.com"}},
			wantStatus: http.StatusOK,
			wantBody:   "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := protectedRouter(tt.verifier)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("body %q should contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

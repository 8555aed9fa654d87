package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/jwt"
)

type fakeValidator map[string]*jwt.Token

func (f fakeValidator) ValidateToken(token string) (*jwt.Token, error) {
	if tok, ok := f[token]; ok {
		return tok, nil
	}
	return nil, errors.New("token is invalid")
}

func TestRequireRole(t *testing.T) {
	v := fakeValidator{
		"admin-token":  {UserID: "admin", Roles: []string{"admin"}},
		"viewer-token": {UserID: "viewer", Roles: []string{"viewer"}},
	}
	r := gin.New()
	r.POST("/api/v1/addons", RequireRole(v, "admin"), func(c *gin.Context) {
		c.String(http.StatusCreated, Principal(c))
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic YWRtaW46c2VjcmV0", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer forged", http.StatusUnauthorized, ""},
		{"missing role", "Bearer viewer-token", http.StatusForbidden, ""},
		{"admin", "Bearer admin-token", http.StatusCreated, "admin"},
		{"scheme is case-insensitive", "bearer admin-token", http.StatusCreated, "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.header != "" {
				header["Authorization"] = tt.header
			}
			w := serve(r, http.MethodPost, "/api/v1/addons", header)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" {
				if w.Body.String() != tt.wantBody {
					t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
				}
				return
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != float64(tt.wantStatus) {
				t.Errorf("body = %v", body)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestRequireRole_NilValidatorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	RequireRole(nil, "admin")
}

func TestPrincipal_Unguarded(t *testing.T) {
	r := gin.New()
	r.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, "[%s]", Principal(c)) })
	if w := serve(r, http.MethodGet, "/open", nil); w.Body.String() != "[]" {
		t.Errorf("body = %q", w.Body.String())
	}
}

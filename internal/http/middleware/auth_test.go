package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		token  string
		header string
		want   int
		admin  bool
	}{
		{"open when unset", "", "", http.StatusOK, false},
		{"missing", "s3cret", "", http.StatusUnauthorized, false},
		{"wrong", "s3cret", "s3cres", http.StatusUnauthorized, false},
		{"prefix", "s3cret", "s3c", http.StatusUnauthorized, false},
		{"valid", "s3cret", "s3cret", http.StatusOK, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(AdminToken(tc.token))
			var sawAdmin bool
			r.GET("/x", func(c *gin.Context) {
				sawAdmin = IsAdmin(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set(HeaderAdminToken, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want || sawAdmin != tc.admin {
				t.Fatalf("status=%d admin=%v; want %d %v", w.Code, sawAdmin, tc.want, tc.admin)
			}
		})
	}
}

package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/schoolfees/internal/infrastructure/config"
	"github.com/erp/schoolfees/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// bearerStub stands in for the JWT middleware
func bearerStub(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer ok" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Next()
}

func TestSwaggerProtection(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		cfg        config.SwaggerConfig
		remoteAddr string
		authHeader string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "disabled answers 404",
			cfg:        config.SwaggerConfig{Enabled: false},
			wantStatus: http.StatusNotFound,
			wantBody:   dto.ErrCodeNotFound,
		},
		{
			name:       "enabled without restrictions",
			cfg:        config.SwaggerConfig{Enabled: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "allow-listed IP",
			cfg:        config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"127.0.0.1"}},
			remoteAddr: "127.0.0.1:40000",
			wantStatus: http.StatusOK,
		},
		{
			name:       "IP inside an allowed CIDR",
			cfg:        config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.20.0.0/16"}},
			remoteAddr: "10.20.3.4:40000",
			wantStatus: http.StatusOK,
		},
		{
			name:       "IP outside the allow-list",
			cfg:        config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.20.0.0/16", "127.0.0.1"}},
			remoteAddr: "192.168.1.9:40000",
			wantStatus: http.StatusForbidden,
			wantBody:   dto.ErrCodeForbidden,
		},
		{
			name:       "auth required without token",
			cfg:        config.SwaggerConfig{Enabled: true, RequireAuth: true},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "auth required with token",
			cfg:        config.SwaggerConfig{Enabled: true, RequireAuth: true},
			authHeader: "Bearer ok",
			wantStatus: http.StatusOK,
		},
		{
			name:       "allow-list checked before the token",
			cfg:        config.SwaggerConfig{Enabled: true, RequireAuth: true, AllowedIPs: []string{"127.0.0.1"}},
			remoteAddr: "192.168.1.9:40000",
			authHeader: "Bearer ok",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/swagger/*any", SwaggerProtection(tt.cfg, bearerStub), func(c *gin.Context) {
				c.String(http.StatusOK, "docs")
			})

			req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestIsIPAllowed(t *testing.T) {
	ips, nets := parseAllowList([]string{" 127.0.0.1 ", "10.0.0.0/8", "not-an-ip", "300.0.0.0/8"})
	assert.Len(t, ips, 1)
	assert.Len(t, nets, 1)

	assert.True(t, isIPAllowed(net.ParseIP("127.0.0.1"), ips, nets))
	assert.True(t, isIPAllowed(net.ParseIP("10.1.2.3"), ips, nets))
	assert.False(t, isIPAllowed(net.ParseIP("11.0.0.1"), ips, nets))
	assert.False(t, isIPAllowed(nil, ips, nets))
}

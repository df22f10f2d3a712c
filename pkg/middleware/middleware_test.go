package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/cargotariff/pkg/config"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/ratelimit"
)

const testSecret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinLoggingMiddleware(), GinRecoveryMiddleware())
	return r
}

func TestJWTAuth(t *testing.T) {
	r := newRouter()
	r.GET("/private", JWTAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	valid, err := SignToken(testSecret, "cargotariff", "operator-1", time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	expired, err := SignToken(testSecret, "cargotariff", "operator-1", -time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	foreign, err := SignToken("other-secret", "cargotariff", "operator-1", time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer " + valid, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK && rec.Body.String() != "operator-1" {
				t.Fatalf("user id: got=%q", rec.Body.String())
			}
		})
	}
}

func TestSignTokenRejectsEmptyInputs(t *testing.T) {
	if _, err := SignToken("", "iss", "sub", time.Minute); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := SignToken("s", "iss", "", time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	r := newRouter()
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != "req-42" {
		t.Fatalf("request id in context: got=%q", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("request id header: got=%q", got)
	}
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Fatal("trace id header missing")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	r := newRouter()
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got=%d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinCORSMiddleware())
	r.POST("/api/v1/cargos/load", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cargos/load", nil)
	req.Header.Set("Origin", "http://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got=%d want=%d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin: got=%q", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	limiter := ratelimit.NewLocalRateLimiter()
	r.Use(RateLimitMiddleware(limiter, config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}))
	r.GET("/cargos", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/cargos", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got=%d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/cargos", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got=%d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}

func TestGRPCRecoveryInterceptor(t *testing.T) {
	interceptor := GRPCRecoveryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Panic"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("want codes.Internal, got %v", err)
	}
}

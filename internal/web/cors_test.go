package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSanitizeOrigins(t *testing.T) {
	t.Parallel()

	sanitized, sanitizeErr := sanitizeOrigins([]string{
		"https://shop.example.com",
		"  https://admin.example.com  ",
		"https://shop.example.com/",
		"",
	})
	if sanitizeErr != nil {
		t.Fatalf("unexpected sanitize error: %v", sanitizeErr)
	}
	want := []string{"https://admin.example.com", "https://shop.example.com"}
	if !reflect.DeepEqual(sanitized, want) {
		t.Fatalf("sanitized %v, want %v", sanitized, want)
	}
}

func TestSanitizeOriginsRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, sanitizeErr := sanitizeOrigins(nil); !errors.Is(sanitizeErr, errEmptyAllowedOrigins) {
		t.Fatalf("empty list: expected errEmptyAllowedOrigins, got %v", sanitizeErr)
	}
	if _, sanitizeErr := sanitizeOrigins([]string{"", "   "}); !errors.Is(sanitizeErr, errEmptyAllowedOrigins) {
		t.Fatalf("blank entries: expected errEmptyAllowedOrigins, got %v", sanitizeErr)
	}
	if _, sanitizeErr := sanitizeOrigins([]string{"*"}); !errors.Is(sanitizeErr, errWildcardOrigin) {
		t.Fatalf("wildcard: expected errWildcardOrigin, got %v", sanitizeErr)
	}
	if _, sanitizeErr := sanitizeOrigins([]string{"https://shop.example.com/app"}); !errors.Is(sanitizeErr, errInvalidOrigin) {
		t.Fatalf("origin with path: expected errInvalidOrigin, got %v", sanitizeErr)
	}
	if _, sanitizeErr := sanitizeOrigins([]string{"shop.example.com"}); !errors.Is(sanitizeErr, errInvalidOrigin) {
		t.Fatalf("schemeless origin: expected errInvalidOrigin, got %v", sanitizeErr)
	}
}

func TestPermissiveCORSAllowsListedOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware, buildErr := PermissiveCORS([]string{"https://shop.example.com"})
	if buildErr != nil {
		t.Fatalf("unexpected build error: %v", buildErr)
	}
	router := gin.New()
	router.Use(middleware)
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.String(http.StatusOK, "pong")
	})

	serve := func(origin string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodGet, "/ping", nil)
		request.Header.Set("Origin", origin)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder
	}

	allowed := serve("https://shop.example.com")
	if allowed.Header().Get("Access-Control-Allow-Origin") != "https://shop.example.com" {
		t.Fatalf("listed origin must be allowed, headers %v", allowed.Header())
	}
	if allowed.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("credentials must be allowed for a listed origin")
	}

	denied := serve("https://evil.example.com")
	if denied.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unlisted origin must not receive an allow header")
	}
}

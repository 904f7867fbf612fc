package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestGatewayAuthMiddleware_WithHeader はX-User-IDヘッダーのユーザーIDが
// コンテキストに引き上げられることを検証する。
func TestGatewayAuthMiddleware_WithHeader(t *testing.T) {
	authMW := NewGatewayAuthMiddleware()

	var capturedUserID string
	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	req.Header.Set("X-User-ID", "user-auth-test")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-auth-test" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-auth-test")
	}
}

// TestGatewayAuthMiddleware_MissingHeader はヘッダーなしのリクエストに
// 統一エラーフォーマットの401が返ることを検証する。
func TestGatewayAuthMiddleware_MissingHeader(t *testing.T) {
	authMW := NewGatewayAuthMiddleware()

	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want %q", body.Code, "UNAUTHORIZED")
	}
}

// TestUserIDFromContext_NotSet はユーザーIDのないコンテキストでエラーを返すことを検証する。
func TestUserIDFromContext_NotSet(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestContextWithUserID_RoundTrip は格納と取得の往復を検証する。
func TestContextWithUserID_RoundTrip(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-rt")

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "user-rt" {
		t.Errorf("userID = %q, want %q", userID, "user-rt")
	}
}

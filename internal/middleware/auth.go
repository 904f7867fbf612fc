package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/feedhub/internal/model"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// ヘッダー名は上流の認証ゲートウェイとの取り決め。
const userIDHeaderName = "X-User-ID"

// ErrUserIDNotFound はリクエストコンテキストにユーザーIDが存在しない場合のエラー。
var ErrUserIDNotFound = errors.New("ユーザーIDがコンテキストに存在しません")

// NewGatewayAuthMiddleware は認証ゲートウェイ連携のミドルウェアを返す。
// 認証自体は上流のゲートウェイの責務で、このミドルウェアは検証済みの
// X-User-IDヘッダーをリクエストコンテキストに引き上げるだけを行う。
// ヘッダーがない場合は401を返し、後続のハンドラーは実行しない。
func NewGatewayAuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(userIDHeaderName)
			if userID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithUserID はユーザーIDを格納した新しいコンテキストを返す。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrUserIDNotFound
	}
	return userID, nil
}

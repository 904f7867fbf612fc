package middleware

import "net/http"

// NewSecurityHeadersMiddleware はJSON API向けのセキュリティレスポンスヘッダーを
// 付与するミドルウェアを返す。購読データはユーザー単位の情報のため、
// 中間キャッシュへの保存を禁止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

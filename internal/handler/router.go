package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/feedhub/internal/metrics"
	"github.com/hitoshi/feedhub/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	SubscriptionService SubscriptionServiceInterface
	DiscoveryService    DiscoveryServiceInterface
	CatalogService      CatalogServiceInterface

	// 計測
	Collector metrics.MetricsCollector
	Registry  *prometheus.Registry
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → GatewayAuth → RateLimit(General)
//
// /health と /metrics は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// 全ルートに効くミドルウェアを最上位に適用
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	subHandler := NewSubscriptionHandler(deps.SubscriptionService)
	discoveryHandler := NewDiscoveryHandler(deps.DiscoveryService, deps.Collector)
	catalogHandler := NewCatalogHandler(deps.CatalogService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.Registry != nil {
		r.Handle("/metrics", metrics.Handler(deps.Registry))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewGatewayAuthMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 購読管理
		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Get("/", subHandler.List)

			// POST /api/subscriptions - 購読登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.FeedRegistrationMiddleware()).Post("/", subHandler.Subscribe)

			// POST /api/subscriptions/unsubscribe - id/name指定の解除（旧クライアント互換）
			r.Post("/unsubscribe", subHandler.UnsubscribeByBody)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", subHandler.Unsubscribe)
				r.Patch("/", subHandler.Update)
			})
		})

		// フィード探索
		r.Post("/api/feeds/scan", discoveryHandler.Scan)

		// カタログ検索
		r.Get("/api/catalog/search", catalogHandler.Search)
	})

	return r
}

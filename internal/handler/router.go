package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/rfsbase/internal/metrics"
	"github.com/hitoshi/rfsbase/internal/middleware"
	"github.com/hitoshi/rfsbase/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	HSTS              bool
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier

	// メトリクス。Metricsはnilでもよい。Gathererがnilなら/metricsを公開しない。
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer

	// ヘルスチェック
	HealthChecker HealthChecker
	Version       string

	// 認証
	MagicLinkService MagicLinkServiceInterface
	UserFinder       UserFinder

	// ProtectedRoutes は必須認証グループの内側に追加ルートを登録する。
	ProtectedRoutes func(r chi.Router)
	// OptionalAuthRoutes は任意認証グループの内側に追加ルートを登録する。
	OptionalAuthRoutes func(r chi.Router)
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → (Auth) → RateLimit
//
// どのルートが認証必須かはこのルーターのグループ構成だけで決まる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})

	authHandler := NewAuthHandler(deps.MagicLinkService, deps.UserFinder)
	healthHandler := NewHealthHandler(deps.HealthChecker, deps.Version)

	requireAuth := middleware.NewRequireAuthMiddleware(deps.TokenVerifier, deps.Metrics)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.TokenVerifier, deps.Metrics)

	r.Get("/api/health", healthHandler.Health)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Group(func(r chi.Router) {
			r.With(deps.RateLimiter.MagicLinkMiddleware()).Post("/auth/magic-link", authHandler.MagicLink)
			r.With(deps.RateLimiter.GeneralMiddleware()).Post("/auth/verify", authHandler.Verify)
		})

		// --- 任意認証のルート ---
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/auth/logout", authHandler.Logout)
			if deps.OptionalAuthRoutes != nil {
				deps.OptionalAuthRoutes(r)
			}
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/auth/me", authHandler.Me)
			if deps.ProtectedRoutes != nil {
				deps.ProtectedRoutes(r)
			}
		})
	})

	return r
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"

	healthCheckTimeout = 2 * time.Second
)

// HealthChecker はDB疎通確認を行う。*sql.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthHandler はヘルスチェックエンドポイントのハンドラー。
type HealthHandler struct {
	checker HealthChecker
	version string
}

// NewHealthHandler はHealthHandlerを生成する。checkerがnilの場合はDB確認を省略する。
func NewHealthHandler(checker HealthChecker, version string) *HealthHandler {
	return &HealthHandler{checker: checker, version: version}
}

// Health はサービスの稼働状態を返す。DBに到達できなければ503を返す。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := healthStatusHealthy, http.StatusOK

	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			status, code = healthStatusUnhealthy, http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(healthResponse{Status: status, Version: h.version})
}

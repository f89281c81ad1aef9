// Package cleanup は使用済み・期限切れマジックリンクの定期削除ジョブを提供する。
// 保持期間（デフォルト24時間）を過ぎたレコードだけを削除するため、
// 引き換え直後のレコードは調査用に一定期間残る。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/rfsbase/internal/clock"
)

// DefaultRetention は期限切れ・使用済みマジックリンクを残しておく期間。
const DefaultRetention = 24 * time.Hour

// MagicLinkPurger は期限切れマジックリンクの一括削除を抽象化するインターフェース。
// repository.PostgresMagicLinkRepo が満たす。
type MagicLinkPurger interface {
	// DeleteExpired はexpires_atがbefore以前、または使用済みでused_atがbefore以前のレコードを削除し、件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// DeletionRecorder は削除件数を記録する。
type DeletionRecorder interface {
	RecordMagicLinksDeleted(count int64)
}

// CleanupJob は保持期間を過ぎたマジックリンクの削除ジョブ。
// 削除は冪等で、対象がなくてもエラーにならない。
type CleanupJob struct {
	links     MagicLinkPurger
	logger    *slog.Logger
	clock     clock.Clock
	recorder  DeletionRecorder
	Retention time.Duration // 保持期間（デフォルト: 24h）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// clkがnilの場合はシステム時刻、recorderはnilでもよい。
func NewCleanupJob(links MagicLinkPurger, logger *slog.Logger, clk clock.Clock, recorder DeletionRecorder) *CleanupJob {
	if clk == nil {
		clk = clock.System{}
	}
	return &CleanupJob{
		links:     links,
		logger:    logger,
		clock:     clk,
		recorder:  recorder,
		Retention: DefaultRetention,
	}
}

// Run は保持期間を過ぎたマジックリンクを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	before := j.clock.Now().Add(-j.Retention)

	deletedCount, err := j.links.DeleteExpired(ctx, before)
	if err != nil {
		j.logger.Error("magic link cleanup failed",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return fmt.Errorf("delete expired magic links: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordMagicLinksDeleted(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("magic link cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("retention", j.Retention),
		slog.Time("before", before),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。ctxがキャンセルされるまでブロックする。
// 1回の失敗でループは止めない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	// エラーはRun内でログ済み
	_ = j.Run(ctx)
}

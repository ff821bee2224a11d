// Package cleanup はセッション索引の定期掃除ジョブを提供する。
// セッション本体はRedisのTTLで消えるが、ユーザーごとのセッション集合には
// IDが残り続けるため、存在しないIDを定期的に取り除く。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの標準実行間隔。
const DefaultInterval = time.Hour

// IndexPruner はセッション集合から無効なIDを取り除くインターフェース。
// *repository.RedisSessionRepo が実装する。
type IndexPruner interface {
	PruneSessionIndex(ctx context.Context) (int64, error)
}

// CleanupJob はセッション索引の掃除ジョブ。
// 冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	pruner   IndexPruner
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(pruner IndexPruner, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		pruner:   pruner,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は掃除を1回実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	removed, err := j.pruner.PruneSessionIndex(ctx)
	if err != nil {
		j.logger.Error("セッション索引の掃除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("removed_count", removed),
		)
		return fmt.Errorf("セッション索引の掃除に失敗: %w", err)
	}

	j.logger.Info("セッション索引の掃除が完了しました",
		slog.Int64("removed_count", removed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降Interval毎に実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}

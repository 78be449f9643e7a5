package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"devamail/backend/internal/monitoring"
	"devamail/backend/internal/storage"
)

// Sweeper 定时清理过期邮件的后台任务。
// 每个清理周期扫描全部邮箱，删除超过 TTL 的邮件；
// 清理后为空的邮箱连同地址一并移除。
type Sweeper struct {
	store    storage.SweepRepository
	ttl      time.Duration
	interval time.Duration
	metrics  *monitoring.Metrics
	log      *zap.Logger

	// 时间来源，测试中可替换
	now func() time.Time
}

// New 创建清理任务。metrics 可以为 nil。
func New(store storage.SweepRepository, ttl, interval time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Run 以固定间隔执行清理，直到上下文取消。
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("starting expired message sweep task",
		zap.Duration("interval", s.interval),
		zap.Duration("ttl", s.ttl),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweep task stopped")
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep 执行一次清理，返回删除的邮件数量。
func (s *Sweeper) Sweep() int {
	expired := s.store.SweepExpired(s.now(), s.ttl)

	if s.metrics != nil {
		s.metrics.RecordSweep(expired)
	}

	if expired > 0 {
		s.log.Info("expired messages swept", zap.Int("count", expired))
	}
	return expired
}

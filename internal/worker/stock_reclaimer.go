package worker

import (
	"context"
	"time"

	"shop/internal/domain/model"
	"shop/internal/util"

	"go.uber.org/zap"
)

const reclaimLockKey = "stock-reclaimer"

type Reclaimer interface {
	ListCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
	ExpireOrder(ctx context.Context, orderID int64, cutoff time.Time) (bool, error)
}

// 複数台で動かすときに1台だけが回収するためのロック
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Clock interface {
	Now() time.Time
}

type StockReclaimerConfig struct {
	Interval  time.Duration
	Staleness time.Duration
	BatchSize int
	LockTTL   time.Duration
}

// StockReclaimer は決済が終わらなかったオンライン注文を定期的に期限切れにして在庫を戻す
type StockReclaimer struct {
	reclaimer Reclaimer
	locker    Locker
	clock     Clock
	cfg       StockReclaimerConfig
	log       *zap.Logger
}

// locker は nil でもよい（単一プロセス）
func NewStockReclaimer(reclaimer Reclaimer, locker Locker, clock Clock, cfg StockReclaimerConfig, log *zap.Logger) *StockReclaimer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockReclaimer{
		reclaimer: reclaimer,
		locker:    locker,
		clock:     clock,
		cfg:       cfg,
		log:       log,
	}
}

type RunResult struct {
	Skipped   bool // 他のプロセスが実行中
	Candidate int
	Expired   int
	Untouched int
	Failed    []int64
}

// Start は ctx が終わるまでブロックする。起動直後に1回回す
func (w *StockReclaimer) Start(ctx context.Context) {
	w.log.Info("stock reclaimer started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("staleness", w.cfg.Staleness))

	w.tick(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("stock reclaimer stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StockReclaimer) tick(ctx context.Context) {
	res, err := w.RunOnce(ctx)
	if err != nil {
		util.ReclaimRunsTotal.WithLabelValues("error").Inc()
		w.log.Error("stock reclaim run failed", zap.Error(err))
		return
	}
	if res.Skipped {
		util.ReclaimRunsTotal.WithLabelValues("skipped").Inc()
		return
	}
	util.ReclaimRunsTotal.WithLabelValues("ok").Inc()
	if res.Candidate > 0 {
		w.log.Info("stock reclaim run finished",
			zap.Int("candidates", res.Candidate),
			zap.Int("expired", res.Expired),
			zap.Int("untouched", res.Untouched),
			zap.Int("failed", len(res.Failed)))
	}
}

// RunOnce は1回分の回収。テストや手動実行からも呼ぶ。
// 1件の失敗は他の注文を止めない（次回また拾う）
func (w *StockReclaimer) RunOnce(ctx context.Context) (RunResult, error) {
	ctx, span := util.StartSpan(ctx, "StockReclaimer.RunOnce")
	defer span.End()

	if w.locker != nil {
		ok, err := w.locker.Acquire(ctx, reclaimLockKey, w.cfg.LockTTL)
		if err != nil {
			return RunResult{}, err
		}
		if !ok {
			return RunResult{Skipped: true}, nil
		}
		defer func() {
			//ctxが切れていても解放は試みる
			if err := w.locker.Release(context.WithoutCancel(ctx), reclaimLockKey); err != nil {
				w.log.Warn("release reclaim lock failed", zap.Error(err))
			}
		}()
	}

	cutoff := w.clock.Now().Add(-w.cfg.Staleness)
	orders, err := w.reclaimer.ListCandidates(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		return RunResult{}, err
	}

	res := RunResult{Candidate: len(orders)}
	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}

		expired, err := w.reclaimer.ExpireOrder(ctx, o.ID, cutoff)
		if err != nil {
			util.ReclaimFailuresTotal.Inc()
			res.Failed = append(res.Failed, o.ID)
			w.log.Error("expire order failed", zap.Int64("order_id", o.ID), zap.Error(err))
			continue
		}
		if !expired {
			res.Untouched++
			continue
		}
		util.ReclaimedOrdersTotal.Inc()
		res.Expired++
		w.log.Info("order expired", zap.Int64("order_id", o.ID))
	}
	return res, nil
}

package usecase

import (
	"context"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"go.uber.org/zap"
)

// 放置されたオンライン注文の在庫回収（1注文 = 1Tx）
type ReclaimUsecase struct {
	tx        repo.TransactionManager
	lifecycle *OrderLifecycle
	events    eventEmitter
	log       *zap.Logger
}

func NewReclaimUsecase(
	tx repo.TransactionManager,
	lifecycle *OrderLifecycle,
	publisher EventPublisher,
	idGen IDGenerator,
	clock Clock,
	log *zap.Logger,
) *ReclaimUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReclaimUsecase{
		tx:        tx,
		lifecycle: lifecycle,
		events:    eventEmitter{pub: publisher, idGen: idGen, clock: clock, log: log},
		log:       log,
	}
}

func (u *ReclaimUsecase) ListCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().ListReclaimable(ctx, cutoff, limit)
		if err != nil {
			return errDB()
		}
		orders = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// 条件を満たさなくなっていた注文は何もせず expired=false
func (u *ReclaimUsecase) ExpireOrder(ctx context.Context, orderID int64, cutoff time.Time) (bool, error) {
	var (
		res     TransitionResult
		skipped bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		res, skipped, err = u.lifecycle.Expire(ctx, r, orderID, cutoff)
		return err
	})
	if err != nil {
		return false, err
	}
	if skipped {
		return false, nil
	}
	u.events.emitTransition(ctx, res, "")
	return true, nil
}

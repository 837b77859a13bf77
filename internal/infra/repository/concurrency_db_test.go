package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 同時に走らせる。start を閉じるまで全員待つ
func race(n int, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
}

func TestTxManagerGorm_LastUnitIsSoldOnce(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	tm := NewTxManagerGorm(gdb)

	_, v := seedProduct(t, gdb, 1, 1)

	results := make([]bool, 2)
	errs := make([]error, 2)
	race(2, func(i int) {
		errs[i] = tm.WithinTx(ctx, func(r repo.TxRepos) error {
			ok, err := r.Inventory().DecreaseVariantIfEnough(ctx, v.ID, 1)
			results[i] = ok
			return err
		})
	})

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0] != results[1], "exactly one checkout takes the last unit")

	got, err := NewProductGormRepository(gdb).FindVariantByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Quantity)
}

func TestTxManagerGorm_CancelRacingExpireRestoresOnce(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	tm := NewTxManagerGorm(gdb)
	lc := usecase.NewOrderLifecycle(usecase.NewInventoryLedger(nil), nil)

	// 注文で2個確保済みの状態（商品8・バリエーション3）
	p, v := seedProduct(t, gdb, 8, 3)
	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	o := seedOrder(t, gdb, model.Order{
		PaymentMethod: model.PaymentMethodOnline,
		OrderStatus:   model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusFailed,
		CreatedAt:     old,
	})
	variantID := v.ID
	require.NoError(t, NewOrderItemGormRepository(gdb).CreateBulk(ctx, o.ID, []model.OrderItem{{
		ProductID:   p.ID,
		VariantID:   &variantID,
		ProductName: p.Name,
		Color:       "Red",
		Size:        "M",
		Price:       decimal.NewFromInt(100),
		Quantity:    2,
		Total:       decimal.NewFromInt(200),
	}}))

	cutoff := old.Add(time.Hour)
	changed := make([]bool, 2)
	race(2, func(i int) {
		_ = tm.WithinTx(ctx, func(r repo.TxRepos) error {
			if i == 0 {
				res, err := lc.Apply(ctx, r, o.ID, model.EventCancel)
				changed[i] = err == nil && res.Changed
				return err
			}
			res, skipped, err := lc.Expire(ctx, r, o.ID, cutoff)
			changed[i] = err == nil && !skipped && res.Changed
			return err
		})
	})

	assert.True(t, changed[0] != changed[1], "exactly one transition wins")

	got, err := NewOrderGormRepository(gdb).FindByID(ctx, o.ID)
	require.NoError(t, err)
	if changed[0] {
		assert.Equal(t, model.OrderStatusCanceled, got.OrderStatus)
	} else {
		assert.Equal(t, model.OrderStatusExpired, got.OrderStatus)
	}

	products := NewProductGormRepository(gdb)
	gotV, err := products.FindVariantByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), gotV.Quantity)
	gotP, err := products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), gotP.StockQuantity)
}

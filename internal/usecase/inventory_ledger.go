package usecase

import (
	"context"
	"errors"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/util"

	"go.uber.org/zap"
)

// 在庫の予約と戻し。必ず呼び出し側のTx(r)の中で使う
type InventoryLedger struct {
	log *zap.Logger
}

func NewInventoryLedger(log *zap.Logger) *InventoryLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &InventoryLedger{log: log}
}

// 予約する1行分
type StockLine struct {
	ProductID   int64
	ProductName string
	VariantID   *int64
	Color       string
	Size        string
	Quantity    int64
}

// 条件付きUPDATEで減らす。読んだ時点の在庫は信用しない
func (l *InventoryLedger) Reserve(ctx context.Context, r repo.TxRepos, line StockLine) error {
	if line.VariantID != nil {
		ok, err := r.Inventory().DecreaseVariantIfEnough(ctx, *line.VariantID, line.Quantity)
		if err != nil {
			return errDB()
		}
		if !ok {
			//0件更新：消えたのか足りないのかを見分ける
			_, err := r.Products().FindVariantByID(ctx, *line.VariantID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrVariantNotFound(line.ProductID, line.Color, line.Size)
			}
			if err != nil {
				return errDB()
			}
			return ErrInsufficientStock(line.ProductName, line.Color, line.Size)
		}
	}

	ok, err := r.Inventory().DecreaseProductIfEnough(ctx, line.ProductID, line.Quantity)
	if err != nil {
		return errDB()
	}
	if !ok {
		return ErrInsufficientStock(line.ProductName, "", "")
	}
	return nil
}

// 注文明細の数量をそのまま戻す。どちらかの在庫に戻せた明細の数量の合計を返す
func (l *InventoryLedger) Restore(ctx context.Context, r repo.TxRepos, orderID int64, items []model.OrderItem) (int64, error) {
	var units int64
	for _, it := range items {
		restored := false

		if it.VariantID != nil {
			err := r.Inventory().IncreaseVariant(ctx, *it.VariantID, it.Quantity)
			switch {
			case err == nil:
				restored = true
			case errors.Is(err, repo.ErrNotFound):
				//バリエーション削除済み。商品在庫だけ戻す
				l.log.Warn("variant missing on restore",
					zap.Int64("order_id", orderID),
					zap.Int64("variant_id", *it.VariantID))
			default:
				return 0, errDB()
			}
		}

		err := r.Inventory().IncreaseProduct(ctx, it.ProductID, it.Quantity)
		switch {
		case err == nil:
			restored = true
		case errors.Is(err, repo.ErrNotFound):
			l.log.Warn("product missing on restore",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", it.ProductID))
		default:
			return 0, errDB()
		}

		if restored {
			units += it.Quantity
		}
	}

	util.StockRestoredUnitsTotal.Add(float64(units))
	return units, nil
}

package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Payments() PaymentRepository
	Shipments() ShipmentRepository
	Products() ProductRepository
	Inventory() InventoryRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnの中の読み書きはすべて r を通す。外部呼び出し（メール・決済API）は commit 後に行う
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

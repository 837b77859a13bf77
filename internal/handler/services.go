package handler

import (
	"context"

	"shop/internal/repository"
	"shop/internal/usecase"
)

// handlerが使うusecaseの操作。実体は usecase パッケージの各Usecase

type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, userEmail string, in usecase.CreateOrderInput) (usecase.CreateOrderOutput, error)
	ListMyOrders(ctx context.Context, userID int64, page int, limit int) (usecase.OrderListOutput, error)
	GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (usecase.OrderOutput, error)
	GetTracking(ctx context.Context, userID int64, orderID int64) (usecase.OrderTrackingOutput, error)
}

type AdminOrderService interface {
	List(ctx context.Context, f repository.AdminOrderListFilter) (usecase.OrderListOutput, error)
	UpdateStatus(ctx context.Context, actorUserID int64, orderID int64, in usecase.AdminUpdateOrderStatusInput) (usecase.OrderOutput, error)
	AuditTrail(ctx context.Context, orderID int64, page int, limit int) (usecase.AuditTrailOutput, error)
}

type ShipmentService interface {
	AddTracking(ctx context.Context, actorUserID int64, orderID int64, in usecase.AddTrackingInput) (usecase.TrackingOutput, error)
	Timeline(ctx context.Context, orderID int64) (usecase.ShipmentTimelineOutput, error)
}

type PaymentService interface {
	InitPayment(ctx context.Context, userID int64, userEmail string, orderID int64) (usecase.InitPaymentOutput, error)
	HandleSuccess(ctx context.Context, in usecase.RedirectInput) (string, error)
	HandleFail(ctx context.Context, transactionID string) (string, error)
	HandleCancel(ctx context.Context, transactionID string) (string, error)
	ValidateIPN(ctx context.Context, form map[string]string) (string, error)
}

var (
	_ OrderService      = (*usecase.OrderUsecase)(nil)
	_ AdminOrderService = (*usecase.AdminOrderUsecase)(nil)
	_ ShipmentService   = (*usecase.ShipmentUsecase)(nil)
	_ PaymentService    = (*usecase.PaymentUsecase)(nil)
)

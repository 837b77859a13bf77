package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/handler"
	"shop/internal/infra/broker"
	"shop/internal/infra/db"
	"shop/internal/infra/invoice"
	"shop/internal/infra/mail"
	"shop/internal/infra/redislock"
	infraRepo "shop/internal/infra/repository"
	"shop/internal/infra/sslcommerz"
	"shop/internal/server"
	"shop/internal/usecase"
	"shop/internal/util"
	"shop/internal/validator"
	"shop/internal/worker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 請求書の見出し
const shopName = "Shop"

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// Kafka未設定のときはイベントをログに出すだけ
type logEventPublisher struct {
	log *zap.Logger
}

func (p *logEventPublisher) Publish(ctx context.Context, ev model.LifecycleEvent) error {
	p.log.Info("order event",
		zap.String("event_type", string(ev.EventType)),
		zap.Int64("order_id", ev.OrderID),
		zap.String("order_status", string(ev.OrderStatus)),
		zap.String("payment_status", string(ev.PaymentStatus)))
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := util.InitLogger(cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer util.SyncLogger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//トレース（任意）
	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(cfg.Observ.ServiceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Warn("tracer disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	//DB接続
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	var publisher usecase.EventPublisher = &logEventPublisher{log: logger}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, logger)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
	}

	gateway := sslcommerz.NewClient(sslcommerz.Config{
		StoreID:         cfg.Gateway.StoreID,
		StorePassword:   cfg.Gateway.StorePassword,
		InitURL:         cfg.Gateway.InitURL,
		ValidationURL:   cfg.Gateway.ValidationURL,
		CallbackBaseURL: cfg.Gateway.CallbackBaseURL,
		Timeout:         cfg.Gateway.Timeout,
	}, logger)

	var mailer usecase.Mailer
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, logger)
	}
	invoices := invoice.NewPDFRenderer(shopName, cfg.Gateway.Currency)

	//Usecase生成
	ledger := usecase.NewInventoryLedger(logger)
	lifecycle := usecase.NewOrderLifecycle(ledger, logger)

	orderUC := usecase.NewOrderUsecase(
		txm,
		validator.NewOrderValidator(),
		ledger,
		gateway,
		mailer,
		invoices,
		publisher,
		idGen,
		clock,
		usecase.OrderSettings{
			Charges: usecase.DeliveryCharges{
				model.DeliveryInsideDhaka:  cfg.Order.InsideDhakaCharge,
				model.DeliveryOutsideDhaka: cfg.Order.OutsideDhakaCharge,
			},
			Currency: cfg.Gateway.Currency,
		},
		logger,
	)
	paymentUC := usecase.NewPaymentUsecase(txm, lifecycle, gateway, publisher, idGen, clock, logger)
	shipmentUC := usecase.NewShipmentUsecase(txm, lifecycle, publisher, idGen, clock, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, shipmentUC)
	reclaimUC := usecase.NewReclaimUsecase(txm, lifecycle, publisher, idGen, clock, logger)

	//回収ジョブ。Redisがあれば複数台でも1台だけ動く
	var locker worker.Locker
	if cfg.Redis.Addr != "" {
		rdb, err := redislock.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		host, _ := os.Hostname()
		locker = redislock.New(rdb, host+"-"+idGen.NewID())
	}
	reclaimer := worker.NewStockReclaimer(reclaimUC, locker, clock, worker.StockReclaimerConfig{
		Interval:  cfg.Reclaim.Interval,
		Staleness: cfg.Reclaim.Staleness,
		BatchSize: cfg.Reclaim.BatchSize,
		LockTTL:   cfg.Reclaim.LockTTL,
	}, logger)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		reclaimer.Start(ctx)
	}()

	//Handler生成
	e := server.New(logger)
	server.RegisterRoutes(e, cfg, userRepo,
		handler.NewOrderHandler(orderUC),
		handler.NewAdminOrderHandler(adminOrderUC),
		handler.NewShipmentHandler(shipmentUC),
		handler.NewPaymentHandler(paymentUC, cfg.Frontend),
	)

	//Server起動
	addr := cfg.Server.Port
	if addr == "" || addr[0] != ':' {
		addr = ":" + addr
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		errCh <- server.Start(e, addr)
	}()

	select {
	case err := <-errCh:
		stop()
		<-workerDone
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := server.Shutdown(e, 10*time.Second); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	<-workerDone
	return nil
}

package sslcommerz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"shop/internal/usecase"
	"shop/internal/util"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Config struct {
	StoreID       string
	StorePassword string
	InitURL       string
	ValidationURL string
	// このAPIの公開URL（success/fail/cancel/ipn の戻り先）
	CallbackBaseURL string
	Timeout         time.Duration
}

// Client は SSLCommerz の決済セッション作成と検証API
type Client struct {
	cfg      Config
	initHTTP *resty.Client
	valHTTP  *resty.Client
	cb       *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	//セッション作成は1回だけ再試行。検証はゲートウェイの判定なので再試行しない
	initHTTP := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	valHTTP := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)

	return &Client{
		cfg:      cfg,
		initHTTP: initHTTP,
		valHTTP:  valHTTP,
		cb:       newBreaker("sslcommerz", log),
		log:      log,
	}
}

func newBreaker(name string, log *zap.Logger) *gobreaker.CircuitBreaker {
	util.GatewayCircuitState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			state := float64(0)
			switch to {
			case gobreaker.StateOpen:
				state = 1
			case gobreaker.StateHalfOpen:
				state = 2
			}
			util.GatewayCircuitState.WithLabelValues(cbName).Set(state)
			log.Warn("circuit breaker state changed",
				zap.String("circuit", cbName),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

type initResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// InitSession は決済画面のURLを返す
func (c *Client) InitSession(ctx context.Context, in usecase.GatewaySessionInput) (string, error) {
	ctx, span := util.StartSpan(ctx, "sslcommerz.InitSession")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("init").Observe(time.Since(start).Seconds())
	}()

	form := c.initForm(in)

	out, err := c.cb.Execute(func() (interface{}, error) {
		var body initResponse
		resp, err := c.initHTTP.R().
			SetContext(ctx).
			SetFormData(form).
			SetResult(&body).
			ForceContentType("application/json").
			Post(c.cfg.InitURL)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("sslcommerz init: http %d", resp.StatusCode())
		}
		return body, nil
	})
	if err != nil {
		return "", formatError(err)
	}

	body := out.(initResponse)
	if !strings.EqualFold(body.Status, "SUCCESS") || body.GatewayPageURL == "" {
		reason := body.FailedReason
		if reason == "" {
			reason = "payment session was not created"
		}
		return "", &usecase.GatewayReasonError{Reason: reason}
	}

	c.log.Info("payment session created",
		zap.String("transaction_id", in.TransactionID),
		zap.String("session_key", body.SessionKey))
	return body.GatewayPageURL, nil
}

func (c *Client) initForm(in usecase.GatewaySessionInput) map[string]string {
	amount := in.Amount.StringFixed(2)
	currency := in.Currency
	if currency == "" {
		currency = "BDT"
	}
	city := in.Customer.State
	if city == "" {
		city = "Dhaka"
	}

	return map[string]string{
		"store_id":     c.cfg.StoreID,
		"store_passwd": c.cfg.StorePassword,
		"total_amount": amount,
		"currency":     currency,
		"tran_id":      in.TransactionID,
		"success_url":  c.callbackURL("/payment/success", in.TransactionID, amount, "success"),
		"fail_url":     c.callbackURL("/payment/fail", in.TransactionID, amount, "fail"),
		"cancel_url":   c.callbackURL("/payment/cancel", in.TransactionID, amount, "cancel"),
		"ipn_url":      c.cfg.CallbackBaseURL + "/payment/validate-payment",

		"shipping_method":  "NO",
		"product_name":     "Order Payment",
		"product_category": "Ecommerce",
		"product_profile":  "general",

		"cus_name":     in.Customer.Name,
		"cus_email":    in.Customer.Email,
		"cus_add1":     in.Customer.Address,
		"cus_city":     city,
		"cus_state":    city,
		"cus_postcode": "1000",
		"cus_country":  "Bangladesh",
		"cus_phone":    in.Customer.Phone,

		"ship_name":     in.Customer.Name,
		"ship_add1":     in.Customer.Address,
		"ship_city":     city,
		"ship_postcode": "1000",
		"ship_country":  "Bangladesh",
	}
}

func (c *Client) callbackURL(path, txnID, amount, status string) string {
	q := url.Values{}
	q.Set("transactionId", txnID)
	q.Set("amount", amount)
	q.Set("status", status)
	return c.cfg.CallbackBaseURL + path + "?" + q.Encode()
}

type validationResponse struct {
	Status         string `json:"status"`
	TranID         string `json:"tran_id"`
	ValID          string `json:"val_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	CurrencyType   string `json:"currency_type"`
	CurrencyAmount string `json:"currency_amount"`
	BankTranID     string `json:"bank_tran_id"`
	CardType       string `json:"card_type"`
	CardIssuer     string `json:"card_issuer"`
}

// Validate は val_id を検証APIに問い合わせる
func (c *Client) Validate(ctx context.Context, validationID string) (usecase.GatewayValidation, error) {
	ctx, span := util.StartSpan(ctx, "sslcommerz.Validate")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	}()

	out, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.valHTTP.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"val_id":       validationID,
				"store_id":     c.cfg.StoreID,
				"store_passwd": c.cfg.StorePassword,
				"format":       "json",
				"v":            "1",
			}).
			Get(c.cfg.ValidationURL)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("sslcommerz validation: http %d", resp.StatusCode())
		}
		return resp.Body(), nil
	})
	if err != nil {
		return usecase.GatewayValidation{}, formatError(err)
	}

	raw := out.([]byte)
	var body validationResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return usecase.GatewayValidation{}, fmt.Errorf("sslcommerz validation: invalid response: %w", err)
	}

	amount, currency := body.CurrencyAmount, body.CurrencyType
	if amount == "" {
		amount, currency = body.Amount, body.Currency
	}
	amt := decimal.Zero
	if amount != "" {
		amt, err = decimal.NewFromString(amount)
		if err != nil {
			return usecase.GatewayValidation{}, fmt.Errorf("sslcommerz validation: invalid amount %q", amount)
		}
	}

	valID := body.ValID
	if valID == "" {
		valID = validationID
	}

	return usecase.GatewayValidation{
		Status:            strings.ToUpper(body.Status),
		ValidationID:      valID,
		TransactionID:     body.TranID,
		Amount:            amt,
		Currency:          currency,
		BankTransactionID: body.BankTranID,
		CardType:          body.CardType,
		CardIssuer:        body.CardIssuer,
		Raw:               string(raw),
	}, nil
}

// url.Error は問い合わせURL（store_passwd 入り）を含むので中身だけ残す
func formatError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return usecase.ErrGatewayUnavailable
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return usecase.ErrGatewayBusy
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("payment gateway error: %s %s: %w", uerr.Op, redactURL(uerr.URL), uerr.Err)
	}
	return fmt.Errorf("payment gateway error: %w", err)
}

// ホストとパスだけ残す
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "gateway"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

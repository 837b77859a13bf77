package sslcommerz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"shop/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(Config{
		StoreID:         "store",
		StorePassword:   "secret",
		InitURL:         srv.URL + "/gwprocess/v4/api.php",
		ValidationURL:   srv.URL + "/validator/api/validationserverAPI.php",
		CallbackBaseURL: "https://api.example.com",
		Timeout:         2 * time.Second,
	}, nil)
}

func sessionInput() usecase.GatewaySessionInput {
	return usecase.GatewaySessionInput{
		TransactionID: "TXN-1",
		Amount:        decimal.NewFromInt(260),
		Currency:      "BDT",
		Customer: usecase.GatewayCustomer{
			Name:    "Rahim",
			Email:   "rahim@example.com",
			Phone:   "01700000000",
			Address: "House 1, Road 2",
			State:   "Dhaka",
		},
	}
}

func TestInitSession_PostsFormAndReturnsGatewayURL(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","sessionkey":"S1","GatewayPageURL":"https://sandbox/pay/S1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	u, err := c.InitSession(context.Background(), sessionInput())
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox/pay/S1", u)

	assert.Equal(t, "store", got.Get("store_id"))
	assert.Equal(t, "secret", got.Get("store_passwd"))
	assert.Equal(t, "260.00", got.Get("total_amount"))
	assert.Equal(t, "BDT", got.Get("currency"))
	assert.Equal(t, "TXN-1", got.Get("tran_id"))
	assert.Equal(t, "rahim@example.com", got.Get("cus_email"))
	assert.Equal(t, "https://api.example.com/payment/validate-payment", got.Get("ipn_url"))

	success, err := url.Parse(got.Get("success_url"))
	require.NoError(t, err)
	assert.Equal(t, "/payment/success", success.Path)
	assert.Equal(t, "TXN-1", success.Query().Get("transactionId"))
	assert.Equal(t, "260.00", success.Query().Get("amount"))
	assert.Equal(t, "success", success.Query().Get("status"))
}

func TestInitSession_FailedStatusPassesReasonThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FAILED","failedreason":"Store Credential Error Or Store is De-active"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.InitSession(context.Background(), sessionInput())
	require.Error(t, err)
	assert.Equal(t, "Store Credential Error Or Store is De-active", err.Error())
}

func TestInitSession_RetriesOnceOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"SUCCESS","GatewayPageURL":"https://sandbox/pay/S2"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	u, err := c.InitSession(context.Background(), sessionInput())
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox/pay/S2", u)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestValidate_ParsesValidResponse(t *testing.T) {
	var q url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"status":"VALID","tran_id":"TXN-1","val_id":"V1","amount":"260.00","currency":"BDT",
			"bank_tran_id":"B1","card_type":"VISA-Dutch Bangla","card_issuer":"DBBL"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	v, err := c.Validate(context.Background(), "V1")
	require.NoError(t, err)

	assert.Equal(t, "V1", q.Get("val_id"))
	assert.Equal(t, "store", q.Get("store_id"))
	assert.Equal(t, "json", q.Get("format"))

	assert.True(t, v.IsValid())
	assert.Equal(t, "TXN-1", v.TransactionID)
	assert.True(t, v.Amount.Equal(decimal.NewFromInt(260)))
	assert.Equal(t, "BDT", v.Currency)
	assert.Equal(t, "B1", v.BankTransactionID)
	assert.Equal(t, "VISA-Dutch Bangla", v.CardType)
	assert.Equal(t, "DBBL", v.CardIssuer)
	assert.Contains(t, v.Raw, `"bank_tran_id":"B1"`)
}

func TestValidate_InvalidStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"INVALID_TRANSACTION"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	v, err := c.Validate(context.Background(), "V9")
	require.NoError(t, err)
	assert.False(t, v.IsValid())
	assert.Equal(t, "V9", v.ValidationID)
}

func TestValidate_DoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Validate(context.Background(), "V1")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestValidate_TransportErrorDoesNotExposeCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Validate(context.Background(), "VAL-1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.NotContains(t, err.Error(), "store_passwd")
	assert.NotContains(t, err.Error(), "VAL-1")
	assert.Contains(t, err.Error(), "/validator/api/validationserverAPI.php")
}

func TestInitSession_FailedStatusIsGatewayReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FAILED"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.InitSession(context.Background(), sessionInput())
	var reason *usecase.GatewayReasonError
	require.ErrorAs(t, err, &reason)
	assert.Equal(t, "payment session was not created", reason.Reason)
}

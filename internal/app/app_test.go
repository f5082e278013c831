//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/market/db"
	"github.com/xenking/market/internal/domain/auth"
	"github.com/xenking/market/internal/domain/order"
	"github.com/xenking/market/internal/domain/payment"
	"github.com/xenking/market/internal/messaging"
	"github.com/xenking/market/internal/repository"
	"github.com/xenking/market/internal/testenv"
)

const jwtSecret = "integration-secret"

func noopProviders() providers {
	return providers{tracer: tracenoop.NewTracerProvider(), meter: metricnoop.NewMeterProvider()}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func testConfig(t *testing.T, databaseURL string) *Config {
	t.Helper()
	return &Config{
		Addr:        freeAddr(t),
		DatabaseURL: databaseURL,
		JWTSecret:   jwtSecret,
		Timezone:    "UTC",
		OfferPolicy: "cheapest",
		Shipping:    ShippingConfig{FreeThreshold: "2000.00", StandardFee: "200.00", ExpressFee: "500.00"},
		Session:     SessionConfig{TTL: time.Hour},
		Kafka:       KafkaConfig{Topic: "payments", GroupID: "payment-worker"},
		Payments:    PaymentsConfig{Workers: 2, QueueSize: 16},
		RateLimit:   RateLimitConfig{Max: 1000, Window: time.Minute},
		CORS:        CORSConfig{Origins: []string{"*"}},
		Graceful:    GracefulConfig{ShutdownTimeout: 5 * time.Second},
	}
}

// database starts postgres and returns both a URL for the process under
// test and a pool for assertions.
func database(ctx context.Context, t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()
	pool := testenv.Postgres(ctx, t)
	s, err := repository.DecodeSeed(bytes.NewReader(db.Catalog))
	require.NoError(t, err)
	require.NoError(t, repository.ApplySeed(ctx, pool, s))
	return pool.Config().ConnString(), pool
}

func waitReady(t *testing.T, baseURL string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second, 100*time.Millisecond)
}

type client struct {
	t       *testing.T
	http    *http.Client
	baseURL string
	token   string
}

func (c *client) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	var out map[string]any
	if len(data) > 0 {
		require.NoError(c.t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func stockOf(ctx context.Context, t *testing.T, pool *pgxpool.Pool, offerID int64) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT remaining_stock FROM offers WHERE id = $1`, offerID).Scan(&n))
	return n
}

func TestServe_CheckoutAndPay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	databaseURL, pool := database(ctx, t)
	rdb := testenv.Redis(ctx, t)

	cfg := testConfig(t, databaseURL)
	cfg.RedisURL = "redis://" + rdb.Options().Addr + "/0"

	runCtx, stop := context.WithCancel(zctx.Base(ctx, zaptest.NewLogger(t)))
	done := make(chan error, 1)
	go func() { done <- serve(runCtx, zaptest.NewLogger(t), noopProviders(), cfg) }()
	t.Cleanup(func() {
		stop()
		assert.NoError(t, <-done)
	})

	baseURL := "http://" + cfg.Addr
	waitReady(t, baseURL)

	token, err := auth.NewVerifier(jwtSecret).Issue(order.Customer{
		FullName: "Jane Doe", Email: "jane@example.com", Phone: "+100",
	}, time.Hour)
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &client{t: t, http: &http.Client{Jar: jar, Timeout: 10 * time.Second}, baseURL: baseURL}

	before := stockOf(ctx, t, pool, 5)

	// The cheapest policy picks offer 5 (shop 2) for the charger.
	code, body := c.do(http.MethodPost, "/api/cart/items", `{"product_id":3,"quantity":2}`)
	require.Equal(t, http.StatusOK, code, body)
	lines := body["lines"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, 5.0, lines[0].(map[string]any)["offer_id"])

	code, _ = c.do(http.MethodPost, "/api/checkout/delivery", `{"delivery":"regular","city":"Berlin","address":"Main St 1"}`)
	require.Equal(t, http.StatusNoContent, code)
	code, _ = c.do(http.MethodPost, "/api/checkout/payment", `{"payment":"card"}`)
	require.Equal(t, http.StatusNoContent, code)

	code, _ = c.do(http.MethodPost, "/api/checkout/confirm", "")
	require.Equal(t, http.StatusUnauthorized, code)

	c.token = token
	code, body = c.do(http.MethodPost, "/api/checkout/confirm", "")
	require.Equal(t, http.StatusCreated, code, body)
	orderID := body["id"].(string)

	code, body = c.do(http.MethodPost, fmt.Sprintf("/api/orders/%s/payment", orderID), `{"card_number":"4444 4444"}`)
	require.Equal(t, http.StatusAccepted, code, body)

	require.Eventually(t, func() bool {
		code, body := c.do(http.MethodGet, "/api/payment/progress", "")
		return code == http.StatusOK && body["status"] == "paid"
	}, 15*time.Second, 200*time.Millisecond)

	code, body = c.do(http.MethodGet, "/api/orders/"+orderID, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, before-2, stockOf(ctx, t, pool, 5))

	code, body = c.do(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["lines"])
}

func TestWork_SettlesKafkaJobs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	databaseURL, pool := database(ctx, t)
	brokers := testenv.Kafka(ctx, t)

	cfg := testConfig(t, databaseURL)
	cfg.Kafka.Brokers = brokers
	cfg.Kafka.Topic = testenv.Topic(t)
	testenv.CreateTopic(ctx, t, brokers[0], cfg.Kafka.Topic)

	// A transaction left pending before the worker starts.
	orders := repository.NewOrderRepository(pool)
	payments := repository.NewPaymentRepository(pool)
	newPending := func(card string) *payment.Transaction {
		o := &order.Order{
			ID:       uuid.New().String(),
			Customer: order.Customer{FullName: "Jane Doe", Email: "jane@example.com"},
			Checkout: order.Checkout{Delivery: order.DeliveryRegular, City: "Berlin", Address: "Main St 1", Payment: order.PaymentCard},
			Status:   order.StatusCreated,
			Items:    []order.Item{{OfferID: 6, ProductID: 4, Price: decimal.RequireFromString("15.00"), Quantity: 1}},
			Subtotal: decimal.RequireFromString("15.00"), Discount: decimal.RequireFromString("0"),
			DeliveryFee: decimal.RequireFromString("200.00"), Total: decimal.RequireFromString("215.00"),
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, orders.Create(ctx, o))
		tx := &payment.Transaction{ID: uuid.New().String(), OrderID: o.ID, CardNumber: card, Total: o.Total, CreatedAt: time.Now().UTC()}
		require.NoError(t, payments.CreateTransaction(ctx, tx))
		return tx
	}
	leftover := newPending("4444 4444")

	runCtx, stop := context.WithCancel(zctx.Base(ctx, zaptest.NewLogger(t)))
	done := make(chan error, 1)
	go func() { done <- work(runCtx, zaptest.NewLogger(t), noopProviders(), cfg) }()
	t.Cleanup(func() {
		stop()
		assert.NoError(t, <-done)
	})

	queued := newPending("1111 1111")
	producer := messaging.NewProducer(brokers, cfg.Kafka.Topic)
	defer producer.Close()
	// A job for a transaction that does not exist, on the same partition,
	// must not hold back the one after it.
	require.NoError(t, producer.Enqueue(ctx, payment.Job{TransactionID: uuid.New().String(), OrderID: queued.OrderID}))
	require.NoError(t, producer.Enqueue(ctx, payment.Job{TransactionID: queued.ID, OrderID: queued.OrderID}))

	resolved := func(id string) *payment.Transaction {
		tx, err := payments.GetTransaction(ctx, id)
		require.NoError(t, err)
		return tx
	}
	require.Eventually(t, func() bool { return resolved(leftover.ID).Resolved() }, 30*time.Second, 200*time.Millisecond)
	assert.True(t, *resolved(leftover.ID).IsSuccess)

	require.Eventually(t, func() bool { return resolved(queued.ID).Resolved() }, 60*time.Second, 200*time.Millisecond)
	got := resolved(queued.ID)
	assert.False(t, *got.IsSuccess)
	assert.Equal(t, payment.ReasonInvalidCard, got.Reason)
}

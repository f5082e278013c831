package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// pendingBatch bounds how many transactions SettlePending loads at once.
const pendingBatch = 100

// Processor settles payment transactions. Settling is idempotent: a
// transaction that already has a result is never settled again, so a job
// delivered twice cannot decrement stock twice.
type Processor struct {
	repo    Repository
	settled metric.Int64Counter
}

// NewProcessor creates a Processor recording metrics on meter.
func NewProcessor(repo Repository, meter metric.Meter) (*Processor, error) {
	settled, err := meter.Int64Counter("payments.settled",
		metric.WithDescription("Payment transactions settled, by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create settled counter")
	}
	return &Processor{repo: repo, settled: settled}, nil
}

// Pay settles the transaction named by job. Invalid cards and short stock are
// reported in the Outcome, not as errors.
func (p *Processor) Pay(ctx context.Context, job Job) (*Outcome, error) {
	tx, err := p.repo.GetTransaction(ctx, job.TransactionID)
	if err != nil {
		return nil, errors.Wrap(err, "get transaction")
	}
	if tx.Resolved() {
		return p.duplicate(tx), nil
	}

	if !ValidateCardNumber(tx.CardNumber) {
		return p.fail(ctx, tx, ReasonInvalidCard)
	}

	err = p.repo.Complete(ctx, tx.ID)
	switch {
	case err == nil:
		ok := true
		tx.IsSuccess = &ok
		p.record(ctx, "paid")
		return outcomeOf(tx), nil
	case errors.Is(err, ErrAlreadyResolved):
		return p.reload(ctx, tx.ID)
	case errors.Is(err, ErrInsufficientStock):
		zctx.From(ctx).Warn("Payment blocked by stock",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return p.fail(ctx, tx, ReasonInsufficientStock)
	case errors.Is(err, ErrOrderNotPayable):
		zctx.From(ctx).Warn("Payment for an order no longer awaiting it",
			zap.String("transaction_id", tx.ID),
			zap.String("order_id", tx.OrderID),
		)
		return p.fail(ctx, tx, ReasonOrderNotPayable)
	default:
		return nil, errors.Wrap(err, "complete payment")
	}
}

// Handle is a Handler that pays the job and logs the outcome.
func (p *Processor) Handle(ctx context.Context, job Job) error {
	out, err := p.Pay(ctx, job)
	if err != nil {
		return err
	}
	zctx.From(ctx).Info("Payment settled",
		zap.String("transaction_id", out.TransactionID),
		zap.String("order_id", out.OrderID),
		zap.Bool("paid", out.Paid),
		zap.String("reason", string(out.Reason)),
		zap.Bool("duplicate", out.Duplicate),
	)
	return nil
}

// SettlePending pays every transaction still pending. It returns the number
// of transactions it settled.
func (p *Processor) SettlePending(ctx context.Context) (int, error) {
	n := 0
	for {
		pending, err := p.repo.ListPending(ctx, pendingBatch)
		if err != nil {
			return n, errors.Wrap(err, "list pending")
		}
		if len(pending) == 0 {
			return n, nil
		}
		for _, tx := range pending {
			if _, err := p.Pay(ctx, Job{TransactionID: tx.ID, OrderID: tx.OrderID}); err != nil {
				return n, errors.Wrapf(err, "settle %s", tx.ID)
			}
			n++
		}
	}
}

func (p *Processor) fail(ctx context.Context, tx *Transaction, reason Reason) (*Outcome, error) {
	if err := p.repo.Fail(ctx, tx.ID, reason); err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			return p.reload(ctx, tx.ID)
		}
		return nil, errors.Wrap(err, "fail payment")
	}
	failed := false
	tx.IsSuccess = &failed
	tx.Reason = reason
	p.record(ctx, string(reason))
	return outcomeOf(tx), nil
}

func (p *Processor) reload(ctx context.Context, id string) (*Outcome, error) {
	tx, err := p.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "reload transaction")
	}
	return p.duplicate(tx), nil
}

func (p *Processor) duplicate(tx *Transaction) *Outcome {
	o := outcomeOf(tx)
	o.Duplicate = true
	return o
}

func (p *Processor) record(ctx context.Context, outcome string) {
	p.settled.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// TypeRedeem is the asynq task type for promo redemptions.
const TypeRedeem = "promo:redeem"

// RedeemPayload is the task payload. The shop travels with the task because
// worker contexts have no request to resolve it from.
type RedeemPayload struct {
	Shop    string `json:"shop"`
	Code    string `json:"code"`
	OrderID string `json:"orderId"`
}

// TaskID derives a stable task id so duplicate enqueues for one order collapse.
func (p RedeemPayload) TaskID() string {
	return strings.Join([]string{TypeRedeem, p.Shop, Normalize(p.Code), strings.TrimSpace(p.OrderID)}, ":")
}

// NewRedeemTask builds the asynq task for p.
func NewRedeemTask(p RedeemPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if strings.TrimSpace(p.Shop) == "" || Normalize(p.Code) == "" || strings.TrimSpace(p.OrderID) == "" {
		return nil, errors.New("shop, code and order id are required")
	}
	p.Code = Normalize(p.Code)
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.TaskID(p.TaskID()), asynq.MaxRetry(5)}, opts...)
	return asynq.NewTask(TypeRedeem, data, opts...), nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueRedeem schedules a redemption. A task already queued for the same
// order is treated as success.
func EnqueueRedeem(ctx context.Context, q Enqueuer, p RedeemPayload) error {
	task, err := NewRedeemTask(p)
	if err != nil {
		return err
	}
	if _, err := q.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue promo redemption: %w", err)
	}
	return nil
}

// HandleRedeemTask processes a TypeRedeem task with the payload's shop bound
// to the context. Permanent failures skip retries.
func (s *Service) HandleRedeemTask(ctx context.Context, t *asynq.Task) error {
	var p RedeemPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode redeem payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(p.Shop) == "" {
		return fmt.Errorf("redeem payload without shop: %w", asynq.SkipRetry)
	}
	return tenant.Run(ctx, p.Shop, func(ctx context.Context) error {
		_, err := s.Redeem(ctx, p.Code, p.OrderID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInactive), errors.Is(err, ErrUsageLimitReached), errors.Is(err, ErrInvalidRedemption):
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			return err
		}
	})
}

package engine

import (
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

// RefundDecision is the recorded outcome of a cancellation. The payment
// subsystem executes it; the engine only computes and persists it.
type RefundDecision struct {
	Percent float64
	Amount  float64
	Status  model.RefundStatus
}

// refundFor applies the time-tiered cancellation policy. Boundaries are
// inclusive on the generous side: exactly 24h before start still refunds
// 100%, exactly 6h still refunds 50%.
func refundFor(now, startAt time.Time, fee float64) RefundDecision {
	until := startAt.Sub(now)
	var percent float64
	switch {
	case until >= 24*time.Hour:
		percent = 100
	case until >= 6*time.Hour:
		percent = 50
	default:
		percent = 0
	}
	return decision(percent, fee)
}

// fullRefund covers provider-initiated cancellations, which refund in
// full regardless of notice.
func fullRefund(fee float64) RefundDecision {
	return decision(100, fee)
}

func decision(percent, fee float64) RefundDecision {
	d := RefundDecision{
		Percent: percent,
		Amount:  fee * percent / 100,
		Status:  model.RefundNotApplicable,
	}
	if d.Amount > 0 {
		d.Status = model.RefundPending
	}
	return d
}

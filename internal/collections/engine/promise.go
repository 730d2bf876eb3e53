package engine

import (
	"time"

	"github.com/smallbiznis/collections/internal/collections/domain"
)

// DerivePromiseState computes the state of a promise as of today. An
// explicit failure is broken regardless of the promised date.
func DerivePromiseState(p domain.PaymentPromise, today time.Time) domain.PromiseState {
	if p.Fulfilled != nil {
		if *p.Fulfilled {
			return domain.PromiseStateFulfilled
		}
		return domain.PromiseStateBroken
	}
	if p.PaidAmount != nil && p.PaidAmount.IsPositive() {
		return domain.PromiseStatePartial
	}
	if StartOfDay(p.PromisedDate).Before(StartOfDay(today)) {
		return domain.PromiseStateBroken
	}
	return domain.PromiseStatePending
}

// WithStates returns a copy of promises with State populated.
func WithStates(promises []domain.PaymentPromise, today time.Time) []domain.PaymentPromise {
	out := make([]domain.PaymentPromise, len(promises))
	for i, p := range promises {
		p.State = DerivePromiseState(p, today)
		out[i] = p
	}
	return out
}

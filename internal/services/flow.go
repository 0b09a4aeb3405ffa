package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/estoque-backend/internal/inventory"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

// Transition is the outcome of feeding one answer to a registration state.
// The machine is linear: awaiting_price -> awaiting_category -> done.
type Transition struct {
	// Next is the state after the answer; empty when the dialogue is over
	Next     string
	Accepted bool
	Price    decimal.Decimal    // set when an awaiting_price answer is accepted
	Category inventory.Category // set when an awaiting_category answer is accepted
}

// Done reports whether the dialogue finished with this answer
func (t Transition) Done() bool { return t.Accepted && t.Next == "" }

// Step is the pure transition function of the registration dialogue. An
// answer that cannot be understood leaves the state unchanged.
func Step(state, answer string) (Transition, error) {
	switch state {
	case models.SessionStateAwaitingPrice:
		price, err := inventory.ParsePrice(answer)
		if err != nil || !price.IsPositive() {
			return Transition{Next: state}, nil
		}
		return Transition{
			Next:     models.SessionStateAwaitingCategory,
			Accepted: true,
			Price:    price.Round(2),
		}, nil

	case models.SessionStateAwaitingCategory:
		category, ok := inventory.ResolveCategoryAnswer(answer)
		if !ok {
			return Transition{Next: state}, nil
		}
		return Transition{Accepted: true, Category: category}, nil

	default:
		return Transition{}, fmt.Errorf("unknown session state %q", state)
	}
}

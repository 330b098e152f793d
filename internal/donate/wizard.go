package donate

import (
	"context"
	"fmt"

	"taxoclean/internal/api"
)

// Step is the wizard's position in the two-step flow.
type Step string

const (
	StepAmount  Step = "amount"
	StepPayment Step = "payment"
	StepDone    Step = "done"
)

// Wizard is the linear donation flow: pick an amount, then pay. A gateway
// error keeps the wizard on the payment step so the user can retry with
// the same amount.
type Wizard struct {
	step        Step
	amountCents int64
	name        string
	email       string

	intents   IntentCreator
	confirmer Confirmer
}

// NewWizard starts a wizard on the amount step.
func NewWizard(intents IntentCreator, confirmer Confirmer) *Wizard {
	return &Wizard{
		step:      StepAmount,
		intents:   intents,
		confirmer: confirmer,
	}
}

// Step returns the wizard's current step.
func (w *Wizard) Step() Step {
	return w.step
}

// AmountCents returns the amount carried into the payment step.
func (w *Wizard) AmountCents() int64 {
	return w.amountCents
}

// SetAmount validates the entered amount and advances to the payment step.
// On ErrInvalidAmount the wizard stays where it is.
func (w *Wizard) SetAmount(raw string) error {
	if w.step != StepAmount {
		return fmt.Errorf("amount already chosen (%s)", FormatUSD(w.amountCents))
	}
	cents, err := ParseAmountCents(raw)
	if err != nil {
		return err
	}
	w.amountCents = cents
	w.step = StepPayment
	return nil
}

// SetBilling records optional billing details for the intent.
func (w *Wizard) SetBilling(name, email string) {
	w.name = name
	w.email = email
}

// Pay creates the payment intent and confirms it with the gateway. On
// success the wizard transitions to done; on any error it remains on the
// payment step.
func (w *Wizard) Pay(ctx context.Context, card CardDetails) error {
	if w.step != StepPayment {
		return fmt.Errorf("not on the payment step (currently %s)", w.step)
	}
	secret, err := w.intents.CreatePaymentIntent(ctx, api.IntentRequest{
		AmountCents:  w.amountCents,
		BillingName:  w.name,
		BillingEmail: w.email,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPayment, err)
	}
	if err := w.confirmer.Confirm(ctx, secret, card); err != nil {
		return err
	}
	w.step = StepDone
	return nil
}

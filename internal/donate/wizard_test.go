package donate

import (
	"context"
	"errors"
	"testing"

	"taxoclean/internal/api"
)

type fakeIntents struct {
	lastReq api.IntentRequest
	secret  string
	err     error
	calls   int
}

func (f *fakeIntents) CreatePaymentIntent(_ context.Context, in api.IntentRequest) (string, error) {
	f.calls++
	f.lastReq = in
	return f.secret, f.err
}

type fakeConfirmer struct {
	errs  []error
	calls int
}

func (f *fakeConfirmer) Confirm(_ context.Context, _ string, _ CardDetails) error {
	i := f.calls
	if i >= len(f.errs) {
		i = len(f.errs) - 1
	}
	f.calls++
	if i < 0 {
		return nil
	}
	return f.errs[i]
}

func testCard() CardDetails {
	return CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"}
}

func TestWizard_InvalidAmountDoesNotAdvance(t *testing.T) {
	w := NewWizard(&fakeIntents{secret: "pi_1_secret_2"}, &fakeConfirmer{})

	for _, raw := range []string{"", "abc", "0", "-5"} {
		if err := w.SetAmount(raw); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("SetAmount(%q) = %v, want ErrInvalidAmount", raw, err)
		}
		if w.Step() != StepAmount {
			t.Fatalf("wizard advanced on invalid amount %q", raw)
		}
	}
}

func TestWizard_ValidAmountAdvancesToPayment(t *testing.T) {
	w := NewWizard(&fakeIntents{secret: "pi_1_secret_2"}, &fakeConfirmer{})

	if err := w.SetAmount("$25.50"); err != nil {
		t.Fatalf("SetAmount: %v", err)
	}
	if w.Step() != StepPayment {
		t.Errorf("step = %s, want payment", w.Step())
	}
	if w.AmountCents() != 2550 {
		t.Errorf("AmountCents = %d, want 2550", w.AmountCents())
	}
	// The amount is locked once the payment step is reached.
	if err := w.SetAmount("10"); err == nil {
		t.Error("amount changed mid-payment")
	}
}

func TestWizard_PayBeforeAmountIsRejected(t *testing.T) {
	intents := &fakeIntents{secret: "pi_1_secret_2"}
	w := NewWizard(intents, &fakeConfirmer{})

	if err := w.Pay(context.Background(), testCard()); err == nil {
		t.Fatal("Pay succeeded before an amount was chosen")
	}
	if intents.calls != 0 {
		t.Errorf("intent created before the payment step: %d calls", intents.calls)
	}
}

func TestWizard_GatewayErrorStaysOnPaymentStep(t *testing.T) {
	decline := errors.New("card declined")
	intents := &fakeIntents{secret: "pi_1_secret_2"}
	confirmer := &fakeConfirmer{errs: []error{decline, nil}}
	w := NewWizard(intents, confirmer)

	if err := w.SetAmount("10"); err != nil {
		t.Fatal(err)
	}
	if err := w.Pay(context.Background(), testCard()); !errors.Is(err, decline) {
		t.Fatalf("Pay = %v, want the gateway's error", err)
	}
	if w.Step() != StepPayment {
		t.Fatalf("step after decline = %s, want payment", w.Step())
	}
	if w.AmountCents() != 1000 {
		t.Errorf("amount lost across retry: %d", w.AmountCents())
	}

	// The retry reuses the same amount and succeeds.
	if err := w.Pay(context.Background(), testCard()); err != nil {
		t.Fatalf("retry Pay: %v", err)
	}
	if w.Step() != StepDone {
		t.Errorf("step = %s, want done", w.Step())
	}
	if intents.lastReq.AmountCents != 1000 {
		t.Errorf("intent amount = %d, want 1000", intents.lastReq.AmountCents)
	}
}

func TestWizard_IntentFailureStaysOnPaymentStep(t *testing.T) {
	intents := &fakeIntents{err: errors.New("service unavailable")}
	w := NewWizard(intents, &fakeConfirmer{})

	if err := w.SetAmount("5"); err != nil {
		t.Fatal(err)
	}
	if err := w.Pay(context.Background(), testCard()); !errors.Is(err, ErrPayment) {
		t.Fatalf("Pay = %v, want ErrPayment", err)
	}
	if w.Step() != StepPayment {
		t.Errorf("step = %s, want payment", w.Step())
	}
}

func TestWizard_BillingDetailsFlowIntoIntent(t *testing.T) {
	intents := &fakeIntents{secret: "pi_1_secret_2"}
	w := NewWizard(intents, &fakeConfirmer{})
	w.SetBilling("Ada Lovelace", "ada@example.org")

	if err := w.SetAmount("20"); err != nil {
		t.Fatal(err)
	}
	if err := w.Pay(context.Background(), testCard()); err != nil {
		t.Fatal(err)
	}
	if intents.lastReq.BillingName != "Ada Lovelace" || intents.lastReq.BillingEmail != "ada@example.org" {
		t.Errorf("intent request = %+v", intents.lastReq)
	}
}

func TestIntentIDFromSecret(t *testing.T) {
	id, err := intentIDFromSecret("pi_3ABC_secret_xyz")
	if err != nil {
		t.Fatalf("intentIDFromSecret: %v", err)
	}
	if id != "pi_3ABC" {
		t.Errorf("id = %q", id)
	}
	for _, bad := range []string{"", "pi_3ABC", "_secret_xyz"} {
		if _, err := intentIDFromSecret(bad); !errors.Is(err, ErrPayment) {
			t.Errorf("intentIDFromSecret(%q) = %v, want ErrPayment", bad, err)
		}
	}
}

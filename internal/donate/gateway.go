package donate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"

	"taxoclean/internal/api"
)

// ErrPayment wraps gateway-reported declines and confirmation failures.
// The gateway's own message is surfaced verbatim to the user.
var ErrPayment = errors.New("payment failed")

// CardDetails are the payment-instrument fields collected in the second
// wizard step. Validation of the instrument itself is the gateway's job.
type CardDetails struct {
	Number   string
	ExpMonth int64
	ExpYear  int64
	CVC      string
}

// IntentCreator obtains a gateway client secret from the backend.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, in api.IntentRequest) (string, error)
}

// Confirmer drives the gateway's confirmation protocol for an intent.
type Confirmer interface {
	Confirm(ctx context.Context, clientSecret string, card CardDetails) error
}

// StripeConfirmer confirms payment intents against Stripe with the
// publishable key, the way the hosted widget does it.
type StripeConfirmer struct {
	api *stripeclient.API
}

// NewStripeConfirmer builds a confirmer for the given publishable key.
func NewStripeConfirmer(publishableKey string) *StripeConfirmer {
	sc := &stripeclient.API{}
	sc.Init(publishableKey, nil)
	return &StripeConfirmer{api: sc}
}

// Confirm attaches the card to the intent and confirms it. Any outcome
// other than a succeeded intent is an ErrPayment.
func (s *StripeConfirmer) Confirm(ctx context.Context, clientSecret string, card CardDetails) error {
	id, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return err
	}

	pm, err := s.api.PaymentMethods.New(&stripe.PaymentMethodParams{
		Params: stripe.Params{Context: ctx},
		Type:   stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(card.ExpMonth),
			ExpYear:  stripe.Int64(card.ExpYear),
			CVC:      stripe.String(card.CVC),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPayment, gatewayMessage(err))
	}

	confirmParams := &stripe.PaymentIntentConfirmParams{
		Params:        stripe.Params{Context: ctx},
		PaymentMethod: stripe.String(pm.ID),
	}
	// PaymentIntentConfirmParams has no ClientSecret field; send the
	// client_secret form parameter (required for publishable-key
	// confirmation) as an extra instead.
	confirmParams.AddExtra("client_secret", clientSecret)
	pi, err := s.api.PaymentIntents.Confirm(id, confirmParams)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPayment, gatewayMessage(err))
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: payment status %s", ErrPayment, pi.Status)
	}
	return nil
}

// intentIDFromSecret extracts the intent ID from a "pi_..._secret_..."
// client secret.
func intentIDFromSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 {
		return "", fmt.Errorf("%w: malformed client secret", ErrPayment)
	}
	return clientSecret[:idx], nil
}

// gatewayMessage prefers the gateway's human-readable message over the
// raw error string.
func gatewayMessage(err error) string {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Msg != "" {
		return serr.Msg
	}
	return err.Error()
}

package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway implements Gateway on Stripe PaymentIntents.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	stripe.Key = secretKey

	return &StripeGateway{}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency, orderID string) (*Intent, error) {
	const op = "payment.StripeGateway.CreateIntent"

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Movie ticket order " + orderID),
	}
	params.AddMetadata("order_id", orderID)
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       translateStatus(pi.Status),
	}, nil
}

func (g *StripeGateway) IntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	const op = "payment.StripeGateway.IntentStatus"

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return translateStatus(pi.Status), nil
}

func translateStatus(s stripe.PaymentIntentStatus) IntentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentFailed
	default:
		return IntentPending
	}
}

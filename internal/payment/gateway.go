package payment

import (
	"context"
	"fmt"
	"sync"
)

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
)

type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       IntentStatus
}

// Gateway is the payment-provider boundary. The subsystem only cares about
// the status an intent reports; everything else stays on the provider side.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, orderID string) (*Intent, error)
	IntentStatus(ctx context.Context, intentID string) (IntentStatus, error)
}

// MockGateway approves every intent. Used when no Stripe key is configured
// and in tests.
type MockGateway struct {
	mu      sync.Mutex
	seq     int
	intents map[string]*Intent

	// FailNext makes the next created intent report failed.
	FailNext bool
}

func NewMockGateway() *MockGateway {
	return &MockGateway{intents: make(map[string]*Intent)}
}

func (g *MockGateway) CreateIntent(ctx context.Context, amountCents int64, currency, orderID string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++

	status := IntentSucceeded
	if g.FailNext {
		status = IntentFailed
		g.FailNext = false
	}

	in := &Intent{
		ID:           fmt.Sprintf("mock_pi_%d", g.seq),
		ClientSecret: fmt.Sprintf("mock_secret_%d", g.seq),
		AmountCents:  amountCents,
		Currency:     currency,
		Status:       status,
	}
	g.intents[in.ID] = in

	return in, nil
}

func (g *MockGateway) IntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	in, ok := g.intents[intentID]
	if !ok {
		return "", fmt.Errorf("unknown intent %s", intentID)
	}

	return in.Status, nil
}

package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
)

// MockRail simulates a programmatic payout rail for local runs.
// It waits MinDelay..MaxDelay and rejects roughly FailureRate of new transfers.
type MockRail struct {
	FailureRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration

	mu   sync.Mutex
	sent map[string]string
}

func NewMockRail() *MockRail {
	return &MockRail{
		FailureRate: 0.1,
		MinDelay:    500 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		sent:        make(map[string]string),
	}
}

func (*MockRail) Name() string { return "mock" }

func (*MockRail) Kind() string { return domain.RailKindProgrammatic }

func (m *MockRail) InitiateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	m.mu.Lock()
	if ref, ok := m.sent[req.IdempotencyKey]; ok {
		m.mu.Unlock()
		return ref, nil
	}
	m.mu.Unlock()

	delay := m.MinDelay
	if spread := m.MaxDelay - m.MinDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", fmt.Errorf("mock rail call canceled: %w", ctx.Err())
	}

	if rand.Float64() < m.FailureRate {
		return "", &RejectionError{Code: "destination_unavailable", Reason: "seller destination temporarily unavailable"}
	}

	ref := fmt.Sprintf("MOCK-%s-%05d", time.Now().Format("20060102-150405"), rand.Intn(100000))
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sent[req.IdempotencyKey]; ok {
		return existing, nil
	}
	m.sent[req.IdempotencyKey] = ref
	return ref, nil
}

package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockCaller is a fake JSON-RPC node. Expectations are registered per RPC
// method name and return the raw JSON result, which is decoded into the
// caller's result exactly like a real client would:
//
//	m.On("eth_getBlockReceipts", "0x10").Return(`[{"gasUsed":"0x5208"}]`, nil)
//
// The first return value may be a string or []byte of JSON, or any value that
// is marshalled to JSON. A nil value yields a JSON null result.
type MockCaller struct {
	mock.Mock

	// Latency is slept before every call returns.
	Latency time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (m *MockCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	m.enter()
	defer m.leave()

	ret := m.MethodCalled(method, args...)

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := ret.Error(1); err != nil {
		return err
	}

	var raw []byte
	switch v := ret.Get(0).(type) {
	case nil:
		raw = []byte("null")
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("mock could not encode result for %s: %w", method, err)
		}
		raw = encoded
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(raw, result)
}

func (m *MockCaller) enter() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
}

func (m *MockCaller) leave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
}

// PeakConcurrency reports the highest number of simultaneous calls seen.
func (m *MockCaller) PeakConcurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

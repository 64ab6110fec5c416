package addrspace

import (
	"context"
	"errors"
	"sync"
)

// ErrMockNotImplemented is returned when a MockClient method lacks an override.
var ErrMockNotImplemented = errors.New("addrspace.MockClient: method not implemented")

// MockClient is a test double for Client.
type MockClient struct {
	BrowseFn         func(context.Context, string) ([]Reference, error)
	ReadAttributesFn func(context.Context, string) ([]Attribute, error)
	MonitorFn        func(context.Context, string) error
	UnmonitorFn      func(context.Context, string) error
	DescribeFn       func() []string
	CloseFn          func(context.Context) error

	// ChangesCh is returned by Changes.
	ChangesCh chan ValueChange

	mu                      sync.Mutex
	BrowseCallCount         int
	BrowseCallArgs          []string
	ReadAttributesCallCount int
	ReadAttributesCallArgs  []string
	MonitorCallArgs         []string
	UnmonitorCallArgs       []string
	CloseCallCount          int
}

// NewMockClient returns a MockClient with zeroed handlers.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Browse invokes the configured stub or returns ErrMockNotImplemented.
func (m *MockClient) Browse(ctx context.Context, nodeID string) ([]Reference, error) {
	m.mu.Lock()
	m.BrowseCallCount++
	m.BrowseCallArgs = append(m.BrowseCallArgs, nodeID)
	m.mu.Unlock()

	if m.BrowseFn == nil {
		return nil, ErrMockNotImplemented
	}
	return m.BrowseFn(ctx, nodeID)
}

// ReadAttributes invokes the configured stub or returns ErrMockNotImplemented.
func (m *MockClient) ReadAttributes(ctx context.Context, nodeID string) ([]Attribute, error) {
	m.mu.Lock()
	m.ReadAttributesCallCount++
	m.ReadAttributesCallArgs = append(m.ReadAttributesCallArgs, nodeID)
	m.mu.Unlock()

	if m.ReadAttributesFn == nil {
		return nil, ErrMockNotImplemented
	}
	return m.ReadAttributesFn(ctx, nodeID)
}

// Monitor invokes the configured stub or returns nil.
func (m *MockClient) Monitor(ctx context.Context, nodeID string) error {
	m.mu.Lock()
	m.MonitorCallArgs = append(m.MonitorCallArgs, nodeID)
	m.mu.Unlock()

	if m.MonitorFn == nil {
		return nil
	}
	return m.MonitorFn(ctx, nodeID)
}

// Unmonitor invokes the configured stub or returns nil.
func (m *MockClient) Unmonitor(ctx context.Context, nodeID string) error {
	m.mu.Lock()
	m.UnmonitorCallArgs = append(m.UnmonitorCallArgs, nodeID)
	m.mu.Unlock()

	if m.UnmonitorFn == nil {
		return nil
	}
	return m.UnmonitorFn(ctx, nodeID)
}

func (m *MockClient) Changes() <-chan ValueChange {
	if m.ChangesCh == nil {
		return nil
	}
	return m.ChangesCh
}

func (m *MockClient) Describe() []string {
	if m.DescribeFn == nil {
		return []string{"   endpoint url   = mock"}
	}
	return m.DescribeFn()
}

func (m *MockClient) Close(ctx context.Context) error {
	m.mu.Lock()
	m.CloseCallCount++
	m.mu.Unlock()

	if m.CloseFn == nil {
		return nil
	}
	return m.CloseFn(ctx)
}

// Calls returns a copy of the browse and read call arguments.
func (m *MockClient) Calls() (browse, read []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.BrowseCallArgs...), append([]string(nil), m.ReadAttributesCallArgs...)
}

// MockAddressSpace is a fixed address space for MockClient stubs: node ids
// mapped to their references and attributes.
type MockAddressSpace struct {
	Refs  map[string][]Reference
	Attrs map[string][]Attribute
}

// Install wires BrowseFn and ReadAttributesFn of m to s.
func (s MockAddressSpace) Install(m *MockClient) {
	m.BrowseFn = func(ctx context.Context, nodeID string) ([]Reference, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.Refs[nodeID], nil
	}
	m.ReadAttributesFn = func(ctx context.Context, nodeID string) ([]Attribute, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.Attrs[nodeID], nil
	}
}

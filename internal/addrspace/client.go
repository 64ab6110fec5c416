// Package addrspace talks to an OPC UA address space, either live through
// gopcua or offline through a SQLite snapshot, and adapts it to the tree
// widget.
package addrspace

import (
	"context"
	"errors"

	"uacommander/internal/debug"
)

var logger = debug.Scope("addrspace")

var (
	// ErrAlreadyMonitored is returned when a node already has a monitored item.
	ErrAlreadyMonitored = errors.New("already monitoring")
	// ErrNotMonitored is returned when unmonitoring a node without an item.
	ErrNotMonitored = errors.New("was not being monitored")
)

// Client is the address space as seen by the UI.
type Client interface {
	// Browse returns the forward Organizes references of nodeID followed by
	// its forward Aggregates references, subtypes included.
	Browse(ctx context.Context, nodeID string) ([]Reference, error)
	// ReadAttributes reads AllAttributes of nodeID in order.
	ReadAttributes(ctx context.Context, nodeID string) ([]Attribute, error)
	// Monitor subscribes to value changes of nodeID.
	Monitor(ctx context.Context, nodeID string) error
	// Unmonitor removes the monitored item of nodeID.
	Unmonitor(ctx context.Context, nodeID string) error
	// Changes delivers value changes for monitored nodes. It is nil for
	// clients that cannot monitor.
	Changes() <-chan ValueChange
	// Describe returns banner lines for the info pane.
	Describe() []string
	Close(ctx context.Context) error
}

// Package transport defines the contract every wire transport implements
// and a name-keyed registry for constructing them, so transports can
// self-register from init(). Concrete transports live in
// transport/rabbitmq, transport/kafka, transport/nats, and transport/wsrdy.
package transport

import (
	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
)

// Connection is what a transport hands to reader: a flow.Connection for
// RDY-credit bookkeeping, plus a stream of the actual delivered messages
// for dispatch. Every value read from Messages corresponds to exactly one
// EventMessage observed on Events.
type Connection interface {
	flow.Connection

	// Messages streams delivered messages for dispatch.
	Messages() <-chan dispatch.Message

	// Close tears down the underlying broker connection. Close should
	// cause Events and Messages to drain and close.
	Close() error
}

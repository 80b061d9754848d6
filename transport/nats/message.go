package nats

import (
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// message adapts a JetStream pull message to dispatch.Message.
type message struct {
	msg    jetstream.Msg
	report func(finished bool)
}

func (m *message) Key() []byte { return []byte(m.msg.Subject()) }
func (m *message) Value() []byte { return m.msg.Data() }

func (m *message) Headers() map[string]string {
	raw := m.msg.Headers()
	h := make(map[string]string, len(raw))
	for k, v := range raw {
		if len(v) > 0 {
			h[k] = v[0]
		}
	}
	return h
}

// Finish acknowledges the message, marking it processed.
func (m *message) Finish() error {
	if err := m.msg.Ack(); err != nil {
		return fmt.Errorf("rdymux/nats: ack: %w", err)
	}
	m.report(true)
	return nil
}

// Requeue signals that the message could not be processed. The server
// redelivers it according to the consumer's MaxDeliver setting.
func (m *message) Requeue() error {
	if err := m.msg.Nak(); err != nil {
		return fmt.Errorf("rdymux/nats: nak: %w", err)
	}
	m.report(false)
	return nil
}

package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// message adapts an amqp.Delivery to dispatch.Message, routing
// Finish/Requeue through Ack/Nack and reporting the outcome back to the
// owning Connection so it can emit the matching flow.Event.
type message struct {
	delivery amqp.Delivery
	requeue  bool
	report   func(finished bool)
}

func (m *message) Key() []byte { return []byte(m.delivery.RoutingKey) }
func (m *message) Value() []byte { return m.delivery.Body }

func (m *message) Headers() map[string]string {
	h := make(map[string]string, len(m.delivery.Headers))
	for k, v := range m.delivery.Headers {
		if s, ok := v.(string); ok {
			h[k] = s
		} else {
			h[k] = fmt.Sprintf("%v", v)
		}
	}
	return h
}

// Finish acknowledges the delivery, removing it from the queue.
func (m *message) Finish() error {
	if err := m.delivery.Ack(false); err != nil {
		return fmt.Errorf("rdymux/rabbitmq: ack: %w", err)
	}
	m.report(true)
	return nil
}

// Requeue negatively acknowledges the delivery. If the connection was
// configured with WithRequeueOnFail(true), the broker redelivers it.
func (m *message) Requeue() error {
	if err := m.delivery.Nack(false, m.requeue); err != nil {
		return fmt.Errorf("rdymux/rabbitmq: nack: %w", err)
	}
	m.report(false)
	return nil
}

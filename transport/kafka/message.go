package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// message adapts a kafka.Message to dispatch.Message. Finish commits the
// offset; Requeue is a no-op commit-wise (the consumer group redelivers
// uncommitted offsets on rebalance or restart). Both release the
// semaphore permit the fetch loop held for this message and report the
// outcome to the owning Connection.
type message struct {
	raw    kafka.Message
	reader *kafka.Reader
	ctx    context.Context
	report func(finished bool)
}

func (m *message) Key() []byte   { return m.raw.Key }
func (m *message) Value() []byte { return m.raw.Value }

func (m *message) Headers() map[string]string {
	h := make(map[string]string, len(m.raw.Headers))
	for _, kh := range m.raw.Headers {
		h[kh.Key] = string(kh.Value)
	}
	return h
}

func (m *message) Finish() error {
	if err := m.reader.CommitMessages(m.ctx, m.raw); err != nil {
		m.report(false)
		return fmt.Errorf("rdymux/kafka: commit offset: %w", err)
	}
	m.report(true)
	return nil
}

func (m *message) Requeue() error {
	m.report(false)
	return nil
}

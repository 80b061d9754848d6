package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Option configures a kafka Connection.
type Option func(*options)

type options struct {
	// Reader
	minBytes int
	maxBytes int
	maxWait  time.Duration

	startOffset int64
	dialer      *kafka.Dialer

	// Flow control
	maxRdy int64
}

func defaults() options {
	return options{
		minBytes:    1,
		maxBytes:    10e6, // 10 MB
		maxWait:     500 * time.Millisecond,
		startOffset: kafka.LastOffset,
		maxRdy:      1000,
	}
}

// WithMaxBytes sets the maximum bytes per fetch.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxWait sets the maximum wait time for fetches.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// WithStartOffset sets the consumer start offset (kafka.FirstOffset or
// kafka.LastOffset).
func WithStartOffset(offset int64) Option {
	return func(o *options) { o.startOffset = offset }
}

// WithDialer sets a custom dialer for TLS/SASL connections.
func WithDialer(d *kafka.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithMaxRdy sets the ceiling flow.ConnectionRdy will clamp RDY requests
// to, reported via MaxRdyCount, and the upper bound the in-flight
// semaphore can be resized to.
func WithMaxRdy(n int64) Option {
	return func(o *options) { o.maxRdy = n }
}

// optsFromExtra extracts Options from transport.Config.Extra.
func optsFromExtra(extra map[string]any) []Option {
	if extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := extra["max_bytes"].(int); ok {
		opts = append(opts, WithMaxBytes(v))
	}
	if v, ok := extra["max_wait_ms"].(int); ok {
		opts = append(opts, WithMaxWait(time.Duration(v)*time.Millisecond))
	}
	return opts
}

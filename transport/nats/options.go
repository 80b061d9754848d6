package nats

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Option configures a nats Connection.
type Option func(*options)

type options struct {
	// Stream
	maxMsgs   int64
	maxBytes  int64
	maxAge    time.Duration
	replicas  int
	retention jetstream.RetentionPolicy
	storage   jetstream.StorageType

	// Consumer
	ackWait    time.Duration
	maxDeliver int
	fetchWait  time.Duration

	// Flow control
	maxRdy int64
}

func defaults() options {
	return options{
		maxMsgs:    -1,
		maxBytes:   -1,
		replicas:   1,
		retention:  jetstream.LimitsPolicy,
		storage:    jetstream.FileStorage,
		ackWait:    30 * time.Second,
		maxDeliver: 5,
		fetchWait:  2 * time.Second,
		maxRdy:     1000,
	}
}

// WithMaxAge sets the maximum age of messages in the stream.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithReplicas sets the stream replication factor.
func WithReplicas(n int) Option {
	return func(o *options) { o.replicas = n }
}

// WithStorage sets the stream storage type (file or memory).
func WithStorage(s jetstream.StorageType) Option {
	return func(o *options) { o.storage = s }
}

// WithAckWait sets how long the server waits for an ack before
// redelivering.
func WithAckWait(d time.Duration) Option {
	return func(o *options) { o.ackWait = d }
}

// WithMaxDeliver sets the maximum number of delivery attempts.
func WithMaxDeliver(n int) Option {
	return func(o *options) { o.maxDeliver = n }
}

// WithFetchWait sets how long a single Fetch call waits for the batch to
// fill before returning partially or empty.
func WithFetchWait(d time.Duration) Option {
	return func(o *options) { o.fetchWait = d }
}

// WithMaxRdy sets the ceiling flow.ConnectionRdy will clamp RDY requests
// to, and the largest Fetch batch size this connection will request.
func WithMaxRdy(n int64) Option {
	return func(o *options) { o.maxRdy = n }
}

// optsFromExtra extracts Options from transport.Config.Extra.
func optsFromExtra(extra map[string]any) []Option {
	if extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := extra["max_deliver"].(int); ok {
		opts = append(opts, WithMaxDeliver(v))
	}
	if v, ok := extra["replicas"].(int); ok {
		opts = append(opts, WithReplicas(v))
	}
	return opts
}

// sanitizeStreamName converts a subject pattern to a valid stream name by
// replacing special characters.
func sanitizeStreamName(subject string) string {
	buf := make([]byte, len(subject))
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		if c == '.' || c == '*' || c == '>' {
			buf[i] = '-'
		} else {
			buf[i] = c
		}
	}
	return string(buf)
}

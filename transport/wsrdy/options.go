package wsrdy

import "time"

// Option configures a wsrdy Connection.
type Option func(*options)

type options struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	heartbeatTimeout time.Duration
	bufferSize       int
}

func defaults() options {
	return options{
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     5 * time.Second,
		heartbeatTimeout: 30 * time.Second,
		bufferSize:       256,
	}
}

// WithHandshakeTimeout sets the WebSocket dial handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) { o.handshakeTimeout = d }
}

// WithWriteTimeout sets the per-write deadline for control and RDY frames.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithHeartbeatTimeout sets how long the connection tolerates silence
// before treating itself as stale and emitting EventClosed.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(o *options) { o.heartbeatTimeout = d }
}

// WithBufferSize sets the buffered channel capacity for delivered
// messages and flow events.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

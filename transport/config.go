package transport

// Config holds transport-agnostic configuration for establishing a
// connection to a broker. Transport plugins extract the fields they need
// and ignore the rest.
type Config struct {
	// Brokers is a list of broker addresses, e.g. "localhost:9092" for
	// Kafka or an AMQP URI for RabbitMQ.
	Brokers []string

	// Topic is the topic, queue, or subject name to consume from.
	Topic string

	// Group is the consumer group ID, where the transport supports one.
	Group string

	// MaxInFlight is the ceiling MaxRdyCount reports to flow.ReaderRdy.
	// The wsrdy transport ignores it and reports the value from the
	// server's handshake instead.
	MaxInFlight int64

	// Extra holds transport-specific configuration.
	Extra map[string]any
}

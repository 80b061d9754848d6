package rabbitmq

// Option configures a rabbitmq Connection.
type Option func(*options)

type options struct {
	// Exchange settings
	exchange     string
	exchangeType string
	routingKey   string

	// Queue settings
	durable    bool
	autoDelete bool
	exclusive  bool

	// Flow control
	maxRdy        int64
	requeueOnFail bool
}

func defaults() options {
	return options{
		exchangeType:  "direct",
		durable:       true,
		maxRdy:        1000,
		requeueOnFail: true,
	}
}

// WithExchange sets the exchange name and type the queue binds to.
func WithExchange(name, kind string) Option {
	return func(o *options) {
		o.exchange = name
		o.exchangeType = kind
	}
}

// WithRoutingKey sets the routing key for queue binding.
func WithRoutingKey(key string) Option {
	return func(o *options) { o.routingKey = key }
}

// WithDurable controls whether the queue survives a broker restart.
func WithDurable(d bool) Option {
	return func(o *options) { o.durable = d }
}

// WithMaxRdy sets the ceiling flow.ConnectionRdy will clamp RDY requests
// to, reported via MaxRdyCount.
func WithMaxRdy(n int64) Option {
	return func(o *options) { o.maxRdy = n }
}

// WithRequeueOnFail controls whether a Requeue nacks with requeue=true
// (redelivered) or requeue=false (dropped or dead-lettered).
func WithRequeueOnFail(requeue bool) Option {
	return func(o *options) { o.requeueOnFail = requeue }
}

// WithAutoDelete causes the queue to be deleted when its last consumer
// disconnects.
func WithAutoDelete(d bool) Option {
	return func(o *options) { o.autoDelete = d }
}

// optsFromExtra extracts Options from transport.Config.Extra.
func optsFromExtra(extra map[string]any) []Option {
	if extra == nil {
		return nil
	}
	var opts []Option
	if ex, ok := extra["exchange"].(string); ok {
		kind := "direct"
		if k, ok := extra["exchange_type"].(string); ok {
			kind = k
		}
		opts = append(opts, WithExchange(ex, kind))
	}
	if rk, ok := extra["routing_key"].(string); ok {
		opts = append(opts, WithRoutingKey(rk))
	}
	if d, ok := extra["durable"].(bool); ok {
		opts = append(opts, WithDurable(d))
	}
	return opts
}

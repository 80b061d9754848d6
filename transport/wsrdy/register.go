package wsrdy

import (
	"fmt"

	"github.com/msoleymani/rdymux/transport"
)

func init() {
	transport.Register("wsrdy", func(cfg transport.Config) (transport.Connection, error) {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("rdymux/wsrdy: a websocket URL is required")
		}
		return Dial(cfg.Brokers[0], cfg.Topic)
	})
}

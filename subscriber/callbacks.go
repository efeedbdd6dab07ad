package subscriber

// Callbacks lets an embedding application observe connection lifecycle
// events without being on the measurement hot path. Every method is
// optional: a nil *Callbacks, or a nil individual function, is simply
// skipped.
type Callbacks struct {
	// OnConnect fires once the command channel is established and
	// operational modes have been sent.
	OnConnect func(remoteAddr string)
	// OnDisconnect fires when the connection drops, for any reason,
	// before any reconnect attempt begins.
	OnDisconnect func(reason string)
	// OnReconnecting fires before each reconnect attempt.
	OnReconnecting func(attempt int)
	// OnSubscribed fires once a Subscribe request succeeds.
	OnSubscribed func(signalCount int)
	// OnError fires for any classified error encountered while serving
	// the connection.
	OnError func(err error)
}

func (c *Callbacks) connect(addr string) {
	if c != nil && c.OnConnect != nil {
		c.OnConnect(addr)
	}
}

func (c *Callbacks) disconnect(reason string) {
	if c != nil && c.OnDisconnect != nil {
		c.OnDisconnect(reason)
	}
}

func (c *Callbacks) reconnecting(attempt int) {
	if c != nil && c.OnReconnecting != nil {
		c.OnReconnecting(attempt)
	}
}

func (c *Callbacks) subscribed(n int) {
	if c != nil && c.OnSubscribed != nil {
		c.OnSubscribed(n)
	}
}

func (c *Callbacks) error(err error) {
	if c != nil && c.OnError != nil {
		c.OnError(err)
	}
}

package publisher

// Callbacks lets an embedding application observe connection lifecycle
// and routing events without being on the measurement hot path. Every
// method is optional: a nil *Callbacks field, or a nil individual
// function, is simply skipped.
type Callbacks struct {
	// OnConnect fires when a connection's Connect command is handled.
	OnConnect func(connectionID, remoteAddr string)
	// OnDisconnect fires when a connection is closed, for any reason.
	OnDisconnect func(connectionID, reason string)
	// OnSubscribe fires once a Subscribe command has been resolved
	// against the current dataset.Snapshot.
	OnSubscribe func(connectionID string, signalCount int)
	// OnError fires for any classified error encountered while serving
	// a connection.
	OnError func(connectionID string, err error)
}

func (c *Callbacks) connect(id, addr string) {
	if c != nil && c.OnConnect != nil {
		c.OnConnect(id, addr)
	}
}

func (c *Callbacks) disconnect(id, reason string) {
	if c != nil && c.OnDisconnect != nil {
		c.OnDisconnect(id, reason)
	}
}

func (c *Callbacks) subscribe(id string, n int) {
	if c != nil && c.OnSubscribe != nil {
		c.OnSubscribe(id, n)
	}
}

func (c *Callbacks) error(id string, err error) {
	if c != nil && c.OnError != nil {
		c.OnError(id, err)
	}
}

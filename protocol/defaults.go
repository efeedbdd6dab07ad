package protocol

import "time"

// DefaultKeepAlive is how long a connection may go without receiving any
// frame before it is considered dead.
const DefaultKeepAlive = 30 * time.Second

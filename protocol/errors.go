package protocol

import "fmt"

func errEmptyFrame() error {
	return fmt.Errorf("protocol: frame declares zero length")
}

func errOversizeFrame(length, max uint32) error {
	return fmt.Errorf("protocol: frame length %d exceeds maximum packet size %d", length, max)
}

func errOutOfOrder(c CommandCode, s State) error {
	return fmt.Errorf("protocol: command %s is not valid in state %s", c, s)
}

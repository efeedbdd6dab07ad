package tssc

import "fmt"

func errShortPacket(n int) error {
	return fmt.Errorf("tssc packet too short: %d bytes, need at least 3", n)
}

func errUnknownVersion(v byte) error {
	return fmt.Errorf("tssc: unsupported format version %d, only version %d is known", v, Version)
}

func errSequenceMismatch(want, got uint16) error {
	return fmt.Errorf("tssc: sequence number %d does not match expected %d", got, want)
}

func errInvalidPointIDCode(c code) error {
	return fmt.Errorf("tssc: code %d is not a valid point ID code", c)
}

func errInvalidTimeCode(c code) error {
	return fmt.Errorf("tssc: code %d is not a valid timestamp code", c)
}

func errInvalidFlagsCode(c code) error {
	return fmt.Errorf("tssc: code %d is not a valid state flags code", c)
}

func errInvalidValueCode(c code) error {
	return fmt.Errorf("tssc: code %d is not a valid value code", c)
}

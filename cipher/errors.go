package cipher

import "fmt"

func errRotationInFlight() error {
	return fmt.Errorf("cipher: a rotation is already pending confirmation")
}

func errNoRotationPending() error {
	return fmt.Errorf("cipher: no rotation is pending confirmation")
}

func errRotationSelectorMismatch(want, got int) error {
	return fmt.Errorf("cipher: rotation confirmation selector %d does not match pending selector %d", got, want)
}

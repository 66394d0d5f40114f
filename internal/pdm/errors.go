// SPDX-License-Identifier: MIT
package pdm

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupported        = errors.New("pdm: operation not supported by this target")
	ErrArmed              = errors.New("pdm: configuration is locked while capture is armed")
	ErrNotInitialized     = errors.New("pdm: driver not initialized")
	ErrAlreadyInitialized = errors.New("pdm: driver already initialized")
	ErrInvalidConfig      = errors.New("pdm: invalid configuration")
	ErrPeripheral         = errors.New("pdm: peripheral failure")
)

// PeripheralError wraps an error reported by the hardware layer together with
// the driver operation that surfaced it.
type PeripheralError struct {
	Op  string // init, uninit, start, stop or event
	Err error
}

func (e *PeripheralError) Error() string {
	return fmt.Sprintf("pdm: peripheral %s failed: %v", e.Op, e.Err)
}

func (e *PeripheralError) Unwrap() error { return e.Err }

// Is reports ErrPeripheral for every PeripheralError so callers can match the
// whole class without knowing the hardware error values.
func (e *PeripheralError) Is(target error) bool {
	return target == ErrPeripheral
}

func peripheralError(op string, err error) error {
	if err == nil {
		return nil
	}
	// Targets that cannot perform an operation report ErrUnsupported directly.
	if errors.Is(err, ErrUnsupported) {
		return err
	}
	return &PeripheralError{Op: op, Err: err}
}

//go:build !linux || !(arm || arm64) || disablegpio

package sensorstream

import "errors"

// ErrGPIOUnsupported is returned when the binary was built without GPIO
// support (non-ARM Linux targets or the disablegpio tag).
var ErrGPIOUnsupported = errors.New("gpio not supported in this build")

func openPins(pins []int) (pinBank, error) {
	return nil, ErrGPIOUnsupported
}

//go:build linux && (arm || arm64) && !disablegpio

package sensorstream

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type periphBank struct {
	pins map[int]gpio.PinIO
}

// openPins initialises the periph host drivers and configures every pin as
// a pulled-down input.
func openPins(pins []int) (pinBank, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bank := &periphBank{pins: make(map[int]gpio.PinIO, len(pins))}
	for _, n := range pins {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			return nil, fmt.Errorf("gpio pin %d not found", n)
		}
		if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("gpio pin %d as input: %w", n, err)
		}
		bank.pins[n] = p
	}
	return bank, nil
}

func (b *periphBank) Read(pin int) (bool, error) {
	p, ok := b.pins[pin]
	if !ok {
		return false, fmt.Errorf("pin not opened")
	}
	return p.Read() == gpio.High, nil
}

// Package touch decodes capacitive touch readings and holds the latest
// decoded state for the control loop.
package touch

import (
	"github.com/jf994/miro-behavior/internal/types"
)

// activeValue is the sensor's native encoding of a touched zone
const activeValue = 1

// Decode converts one region's raw bytes into per-zone flags.
// The reading must be exactly types.ZonesPerRegion bytes long.
func Decode(region types.Region, raw []byte) (types.ZoneFlags, error) {
	var flags types.ZoneFlags
	if len(raw) != types.ZonesPerRegion {
		return flags, &types.DecodeError{
			Region: region,
			Got:    len(raw),
			Want:   types.ZonesPerRegion,
		}
	}
	for i, b := range raw {
		flags[i] = b == activeValue
	}
	return flags, nil
}

// DecodeReading decodes both regions. A failure in either region fails the
// whole reading so that head and body never come from different events.
func DecodeReading(r types.RawReading) (types.SensorFlags, error) {
	head, err := Decode(types.RegionHead, r.TouchHead)
	if err != nil {
		return types.SensorFlags{}, err
	}
	body, err := Decode(types.RegionBody, r.TouchBody)
	if err != nil {
		return types.SensorFlags{}, err
	}
	return types.NewSensorFlags(head, body), nil
}

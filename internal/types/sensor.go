package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// ZonesPerRegion is the number of capacitive touch zones on each body region.
const ZonesPerRegion = 4

// ZoneCount is the total number of zones (head + body).
const ZoneCount = 2 * ZonesPerRegion

// Region identifies a group of touch zones
type Region string

const (
	RegionHead Region = "head"
	RegionBody Region = "body"
)

// ZoneBytes is the raw per-zone reading of one region, one byte per zone.
//
// On the wire it is either a JSON number array ([1,0,0,0]) or a base64
// string, which is how the ROS bridge serializes uint8[] fields.
type ZoneBytes []byte

// UnmarshalJSON implements json.Unmarshaler
func (z *ZoneBytes) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("invalid base64 zone bytes: %w", err)
		}
		*z = b
		return nil
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("zone bytes must be a number array or base64 string: %w", err)
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("zone %d value %d out of byte range", i, v)
		}
		out[i] = byte(v)
	}
	*z = out
	return nil
}

// MarshalJSON encodes zone bytes as a number array (never base64)
func (z ZoneBytes) MarshalJSON() ([]byte, error) {
	values := make([]int, len(z))
	for i, b := range z {
		values[i] = int(b)
	}
	return json.Marshal(values)
}

// RawReading is one event of the inbound sensor stream
type RawReading struct {
	TouchHead ZoneBytes `json:"touch_head" msgpack:"touch_head"`
	TouchBody ZoneBytes `json:"touch_body" msgpack:"touch_body"`
}

// ZoneFlags holds the decoded touch state of one region
type ZoneFlags [ZonesPerRegion]bool

// Any reports whether at least one zone is touched
func (z ZoneFlags) Any() bool {
	for _, touched := range z {
		if touched {
			return true
		}
	}
	return false
}

// SensorFlags is the decoded touch state of all zones: head 1-4 then body 1-4.
type SensorFlags [ZoneCount]bool

// NewSensorFlags joins per-region flags in physical order
func NewSensorFlags(head, body ZoneFlags) SensorFlags {
	var f SensorFlags
	copy(f[:ZonesPerRegion], head[:])
	copy(f[ZonesPerRegion:], body[:])
	return f
}

// Head returns the head zones
func (f SensorFlags) Head() ZoneFlags {
	var z ZoneFlags
	copy(z[:], f[:ZonesPerRegion])
	return z
}

// Body returns the body zones
func (f SensorFlags) Body() ZoneFlags {
	var z ZoneFlags
	copy(z[:], f[ZonesPerRegion:])
	return z
}

// AnyHead reports whether any head zone is touched
func (f SensorFlags) AnyHead() bool { return f.Head().Any() }

// AnyBody reports whether any body zone is touched
func (f SensorFlags) AnyBody() bool { return f.Body().Any() }

// Snapshot is one complete, immutable view of the sensor state
type Snapshot struct {
	Flags     SensorFlags
	Seq       uint64    // 0 until the first reading is stored
	UpdatedAt time.Time // zero until the first reading is stored
}

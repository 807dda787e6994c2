package types

import "fmt"

const (
	// JointCount is the number of body joints driven by body_config
	JointCount = 4
	// LightCount is the number of RGB lights on the body
	LightCount = 6
	// LightChannels is the length of lights_raw (6 lights × RGB)
	LightChannels = LightCount * 3
	// DefaultSpeed in body_config_speed means "platform default / unbounded"
	DefaultSpeed = -1.0
)

// BodyVel is the requested base velocity
type BodyVel struct {
	LinearX  float64 `json:"linear_x" msgpack:"linear_x"`
	AngularZ float64 `json:"angular_z" msgpack:"angular_z"`
}

// ActuatorCommand is one complete platform control record.
// Fixed-size arrays make a short or partially filled command unrepresentable.
type ActuatorCommand struct {
	EyelidClosure   float64              `json:"eyelid_closure" msgpack:"eyelid_closure"`
	BodyConfig      [JointCount]float64  `json:"body_config" msgpack:"body_config"`
	BodyConfigSpeed [JointCount]float64  `json:"body_config_speed" msgpack:"body_config_speed"`
	Tail            float64              `json:"tail" msgpack:"tail"`
	EarRotate       [2]float64           `json:"ear_rotate" msgpack:"ear_rotate"`
	LightsRaw       [LightChannels]uint8 `json:"lights_raw" msgpack:"lights_raw"`
	SoundIndexP1    int                  `json:"sound_index_P1" msgpack:"sound_index_P1"` // 0 = no sound
	BodyVel         BodyVel              `json:"body_vel" msgpack:"body_vel"`
}

// RGB fills all six lights with the same color
func RGB(r, g, b uint8) [LightChannels]uint8 {
	var lights [LightChannels]uint8
	for i := 0; i < LightCount; i++ {
		lights[3*i] = r
		lights[3*i+1] = g
		lights[3*i+2] = b
	}
	return lights
}

// Check reports values outside the normalized actuator ranges.
// It never modifies the command.
func (c ActuatorCommand) Check() []string {
	var issues []string
	if c.EyelidClosure < 0 || c.EyelidClosure > 1 {
		issues = append(issues, fmt.Sprintf("eyelid_closure %v outside [0,1]", c.EyelidClosure))
	}
	if c.Tail < -1 || c.Tail > 1 {
		issues = append(issues, fmt.Sprintf("tail %v outside [-1,1]", c.Tail))
	}
	for i, s := range c.BodyConfigSpeed {
		if s < 0 && s != DefaultSpeed {
			issues = append(issues, fmt.Sprintf("body_config_speed[%d] %v is negative but not the default marker", i, s))
		}
	}
	return issues
}

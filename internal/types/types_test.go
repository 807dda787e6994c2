package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestZoneBytesUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"number array", `[1,0,0,1]`, []byte{1, 0, 0, 1}, false},
		{"base64", `"AQAAAA=="`, []byte{1, 0, 0, 0}, false},
		{"short array is kept as is", `[1,0,0]`, []byte{1, 0, 0}, false},
		{"out of byte range", `[1,0,256,0]`, nil, true},
		{"negative", `[-1,0,0,0]`, nil, true},
		{"bad base64", `"@@@"`, nil, true},
		{"object", `{"a":1}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var z ZoneBytes
			err := json.Unmarshal([]byte(tt.input), &z)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %v", z)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if string(z) != string(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, []byte(z))
			}
		})
	}
}

func TestRawReadingFromSensorPayload(t *testing.T) {
	payload := `{"touch_head":[0,1,0,0],"touch_body":"AAAAAQ==","other":42}`

	var r RawReading
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if string(r.TouchHead) != string([]byte{0, 1, 0, 0}) {
		t.Errorf("Unexpected head bytes %v", []byte(r.TouchHead))
	}
	if string(r.TouchBody) != string([]byte{0, 0, 0, 1}) {
		t.Errorf("Unexpected body bytes %v", []byte(r.TouchBody))
	}
}

func TestSensorFlagsRegions(t *testing.T) {
	f := NewSensorFlags(ZoneFlags{false, true, false, false}, ZoneFlags{false, false, false, true})

	if !f[1] || !f[7] {
		t.Fatalf("Unexpected layout %v", f)
	}
	if !f.AnyHead() || !f.AnyBody() {
		t.Errorf("Expected head and body touched, got %v", f)
	}
	if (SensorFlags{}).AnyHead() {
		t.Error("Empty flags should not report a head touch")
	}
}

func TestActuatorCommandJSON(t *testing.T) {
	cmd := ActuatorCommand{LightsRaw: RGB(255, 64, 64)}

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// lights must be a number array, not base64
	if !strings.Contains(string(data), `"lights_raw":[255,64,64,255,64,64`) {
		t.Errorf("Unexpected lights encoding: %s", data)
	}
}

func TestActuatorCommandCheck(t *testing.T) {
	ok := ActuatorCommand{EyelidClosure: 0.4, Tail: -1, BodyConfigSpeed: [JointCount]float64{0, -1, -1, -1}}
	if issues := ok.Check(); len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}

	bad := ActuatorCommand{EyelidClosure: 1.5, Tail: 68, BodyConfigSpeed: [JointCount]float64{0, -0.5, -1, -1}}
	if issues := bad.Check(); len(issues) != 3 {
		t.Errorf("Expected 3 issues, got %v", issues)
	}
}

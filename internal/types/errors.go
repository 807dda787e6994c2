package types

import "fmt"

// DecodeError reports a malformed raw sensor reading
type DecodeError struct {
	Region Region
	Got    int
	Want   int
	Err    error // underlying wire error, if any
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s zones: %v", e.Region, e.Err)
	}
	return fmt.Sprintf("decode %s zones: got %d bytes, want %d", e.Region, e.Got, e.Want)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PublishError reports a failed actuator command delivery
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %q: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ShutdownError reports that the final safe pose could not be published
type ShutdownError struct {
	Err error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("publish safe pose on shutdown: %v", e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }

package transport

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jf994/miro-behavior/internal/config"
)

// Codec converts messages to and from wire payloads
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// NewCodec returns the codec registered under name
func NewCodec(name string) (Codec, error) {
	switch name {
	case config.CodecJSON, "":
		return JSONCodec{}, nil
	case config.CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec is the default, rosbridge compatible codec
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return config.CodecJSON }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec is a compact binary codec for constrained links
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string                       { return config.CodecMsgpack }
func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

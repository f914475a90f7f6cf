// Package jsoncodec is the codec boundary: it encodes outbound requests and
// decodes inbound text into the generic structure selectors walk.
package jsoncodec

import (
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var defaultConfig = sonic.ConfigStd

// genericConfig keeps numbers as json.Number so selectors see the exact text
// that was on the wire.
var genericConfig = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

var protoJSONMarshalOptions = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

// Decoder turns raw inbound text into maps, slices and scalars.
type Decoder interface {
	Decode(raw string) (any, error)
}

// DecoderFunc adapts a plain function to Decoder.
type DecoderFunc func(raw string) (any, error)

func (f DecoderFunc) Decode(raw string) (any, error) {
	return f(raw)
}

// Generic is the default Decoder.
var Generic Decoder = DecoderFunc(DecodeGeneric)

// DecodeGeneric decodes raw into the generic form.
func DecodeGeneric(raw string) (any, error) {
	var out any
	if err := genericConfig.UnmarshalFromString(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeRequest renders an outbound request. Proto messages go through
// protojson, strings and byte slices are sent as-is, everything else is
// marshalled as JSON.
func EncodeRequest(req any) ([]byte, error) {
	switch v := req.(type) {
	case nil:
		return nil, fmt.Errorf("request payload is nil")
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case proto.Message:
		return protoJSONMarshalOptions.Marshal(v)
	default:
		return Marshal(v)
	}
}

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

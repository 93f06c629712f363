// Package pb defines the market.v1 gRPC service. Messages are plain structs
// carried by a JSON codec registered under the "json" content-subtype, so
// clients select it with grpc.CallContentSubtype(pb.CodecName).
package pb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

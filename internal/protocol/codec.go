package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Websocket subprotocols. The negotiated one picks the codec.
const (
	SubprotocolJSON    = "yali.json"
	SubprotocolMsgpack = "yali.msgpack"
)

// Subprotocols lists what the server accepts, preferred first.
var Subprotocols = []string{SubprotocolMsgpack, SubprotocolJSON}

// Codec converts messages to and from websocket frames.
type Codec interface {
	// Name is the websocket subprotocol this codec answers to.
	Name() string
	// Binary reports whether frames are binary (true) or text.
	Binary() bool
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte, msg *Message) error
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// CodecFor returns the codec for a negotiated subprotocol. Anything unknown,
// including the empty string, falls back to JSON so plain browser clients work.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return Msgpack
	}
	return JSON
}

// CodecByName resolves the short names used in configuration.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json", SubprotocolJSON:
		return JSON, nil
	case "msgpack", SubprotocolMsgpack:
		return Msgpack, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return SubprotocolJSON }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Decode(data []byte, msg *Message) error {
	return json.Unmarshal(data, msg)
}

// msgpackCodec carries Payload as a byte string containing the JSON bytes,
// so payloads cross between codecs untouched.
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return SubprotocolMsgpack }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(msg *Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func (msgpackCodec) Decode(data []byte, msg *Message) error {
	return msgpack.Unmarshal(data, msg)
}

package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestCodecFor(t *testing.T) {
	if CodecFor(SubprotocolMsgpack) != Msgpack {
		t.Error("expected msgpack codec for msgpack subprotocol")
	}
	if CodecFor("") != JSON {
		t.Error("expected JSON codec when no subprotocol was negotiated")
	}
	if CodecFor("something-else") != JSON {
		t.Error("expected JSON codec for unknown subprotocol")
	}
}

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"", "json", SubprotocolJSON} {
		c, err := CodecByName(name)
		if err != nil || c != JSON {
			t.Errorf("CodecByName(%q) = %v, %v", name, c, err)
		}
	}
	if c, err := CodecByName("msgpack"); err != nil || c != Msgpack {
		t.Errorf("CodecByName(msgpack) = %v, %v", c, err)
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestJSONFieldNames(t *testing.T) {
	data, err := JSON.Encode(Signal("bob", json.RawMessage(`{"type":"offer","sdp":"v=0"}`)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != "signal" {
		t.Errorf("expected type signal, got %v", raw["type"])
	}
	if raw["recipientId"] != "bob" {
		t.Errorf("expected recipientId bob, got %v", raw["recipientId"])
	}
	payload, ok := raw["payload"].(map[string]any)
	if !ok || payload["type"] != "offer" {
		t.Errorf("payload not carried as a JSON object: %v", raw["payload"])
	}
	if _, ok := raw["senderId"]; ok {
		t.Error("empty senderId should be omitted")
	}
}

func TestPayloadSurvivesCodecSwitch(t *testing.T) {
	payload := json.RawMessage(`{"type":"answer","sdp":"v=0\r\no=- 1 2 IN IP4 0.0.0.0"}`)

	// A msgpack sender's payload is relayed to a JSON recipient.
	packed, err := Msgpack.Encode(Signal("bob", payload))
	if err != nil {
		t.Fatalf("msgpack encode: %v", err)
	}
	var in Message
	if err := Msgpack.Decode(packed, &in); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	if !bytes.Equal(in.Payload, payload) {
		t.Fatalf("payload changed through msgpack: %s", in.Payload)
	}

	out, err := JSON.Encode(ReceiveSignal("alice", in.Payload))
	if err != nil {
		t.Fatalf("json encode: %v", err)
	}
	var got Message
	if err := JSON.Decode(out, &got); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if got.SenderID != "alice" {
		t.Errorf("expected sender alice, got %q", got.SenderID)
	}

	var want, have any
	json.Unmarshal(payload, &want)
	json.Unmarshal(got.Payload, &have)
	if !jsonEqual(want, have) {
		t.Errorf("payload mismatch: want %s, got %s", payload, got.Payload)
	}
}

func TestUsersSnapshotMsgpack(t *testing.T) {
	data, err := Msgpack.Encode(UsersInRoom([]string{"alice", "bob"}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var msg Message
	if err := Msgpack.Decode(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != TypeUsersInRoom || len(msg.Users) != 2 || msg.Users[0] != "alice" || msg.Users[1] != "bob" {
		t.Errorf("unexpected snapshot: %+v", msg)
	}
}

func jsonEqual(a, b any) bool {
	x, _ := json.Marshal(a)
	y, _ := json.Marshal(b)
	return bytes.Equal(x, y)
}

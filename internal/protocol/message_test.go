package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/MeshCall/internal/domain"
)

func TestEncode_PayloadBytesUntouched(t *testing.T) {
	offer := Payload("{ \"type\" : \"offer\",\n \"sdp\": \"v=0\\r\\na=<x>&y\" }")
	raw, err := Encode(IncomingCall("A", offer))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Contains(raw, offer) {
		t.Fatalf("offer bytes were rewritten: %s", raw)
	}

	got, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(got.Offer, offer) {
		t.Fatalf("offer=%q, want %q", got.Offer, offer)
	}
	if got.From != "A" || got.Type != TypeIncomingCall {
		t.Fatalf("unexpected envelope: %#v", got)
	}
}

func TestEncode_AllUsersAlwaysHasArray(t *testing.T) {
	raw, err := Encode(AllUsers(nil))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(generic["users"]) != "[]" {
		t.Fatalf("users=%s, want []", generic["users"])
	}
}

func TestEncode_OmitsEmptyFields(t *testing.T) {
	raw, err := Encode(LeaveRoom())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `{"type":"leave-room"}` {
		t.Fatalf("got %s", raw)
	}
}

func TestParseRequest_ToleratesUnknownFields(t *testing.T) {
	m, err := ParseRequest([]byte(`{"type":"join-room","room":"r1","email":"a@b.c"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Room != domain.RoomName("r1") {
		t.Fatalf("room=%q", m.Room)
	}
}

func TestParseRequest_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"type":`,
		"no type":            `{"room":"r1"}`,
		"unknown type":       `{"type":"shout"}`,
		"server type":        `{"type":"incoming-call","from":"a","offer":{}}`,
		"join without room":  `{"type":"join-room"}`,
		"call without to":    `{"type":"user-call","offer":{"sdp":"x"}}`,
		"call without offer": `{"type":"user-call","to":"b"}`,
		"null offer":         `{"type":"user-call","to":"b","offer":null}`,
		"accept w/o answer":  `{"type":"accept-call","to":"b"}`,
		"decline without to": `{"type":"decline-call"}`,
		"candidate w/o cand": `{"type":"candidate","to":"b"}`,
		"candidate w/o to":   `{"type":"candidate","candidate":{"candidate":"c"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRequest([]byte(raw))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err=%v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseEvent_RequiresSender(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"type":"candidate","to":"b","candidate":{}}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := ParseEvent([]byte(`{"type":"call-declined","from":"b"}`)); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

package server

import (
	"errors"
	"testing"
)

func TestParseMessageDispatchesOnType(t *testing.T) {
	cases := []struct {
		payload string
		want    string
	}{
		{`{"type":"init","unique_id":"","nickname":"Rex"}`, TypeInit},
		{`{"type":"READY","unique_id":"","nickname":"Rex","pin_code":"0042"}`, TypeReady},
		{`{"type":"play","unique_id":"x","nickname":"Rex","position":[1,2],"level":1,"direction":"r"}`, TypePlay},
		{`{"type":"exit"}`, TypeExit},
		{`{"type":"broadcast","unique_id":"x"}`, TypeBroadcast},
	}
	for _, tc := range cases {
		msg, err := ParseMessage([]byte(tc.payload))
		if err != nil {
			t.Fatalf("%s: %v", tc.payload, err)
		}
		if got := msg.messageType(); got != tc.want {
			t.Fatalf("%s: got type %q want %q", tc.payload, got, tc.want)
		}
	}

	msg, _ := ParseMessage([]byte(`{"type":"ready","nickname":"Rex","pin_code":"0042","private":true}`))
	im, ok := msg.(*InitMessage)
	if !ok || im.PinCode != "0042" || !im.Private || im.Type != TypeReady {
		t.Fatalf("unexpected init message: %#v", msg)
	}
}

func TestParseMessageRejectsBadInput(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"type":"teleport"}`)); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
	if _, err := ParseMessage([]byte(`{"nickname":"Rex"}`)); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("missing type: expected ErrUnknownMessageType, got %v", err)
	}
	if _, err := ParseMessage([]byte(`not json`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := ParseMessage([]byte(`{"type":"play","level":"high"}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("mistyped level: expected ErrMalformed, got %v", err)
	}
}

func TestDirectionRoundTripsAsShortForm(t *testing.T) {
	for in, want := range map[string]Direction{"l": DirLeft, "left": DirLeft, "R": DirRight, "right": DirRight} {
		got, ok := ParseDirection(in)
		if !ok || got != want {
			t.Fatalf("ParseDirection(%q) = %v, %t", in, got, ok)
		}
	}
	if _, ok := ParseDirection("up"); ok {
		t.Fatalf("up should not parse")
	}
	b, _ := DirLeft.MarshalJSON()
	if string(b) != `"l"` {
		t.Fatalf("unexpected encoding %s", b)
	}
}

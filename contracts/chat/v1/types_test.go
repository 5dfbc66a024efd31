package v1

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestInboundValidate(t *testing.T) {
	t.Parallel()

	ok := Inbound{SenderID: "u1", ReceiverID: "u2", Text: "hi"}

	cases := []struct {
		name string
		in   Inbound
		want error
	}{
		{name: "ok", in: ok, want: nil},
		{name: "typed ok", in: Inbound{Type: TypeMessage, SenderID: "u1", ReceiverID: "u2", Text: "hi"}, want: nil},
		{name: "missing sender", in: Inbound{ReceiverID: "u2", Text: "hi"}, want: ErrMissingSender},
		{name: "missing receiver", in: Inbound{SenderID: "u1", Text: "hi"}, want: ErrMissingReceiver},
		{name: "blank text", in: Inbound{SenderID: "u1", ReceiverID: "u2", Text: "  "}, want: ErrEmptyText},
		{name: "too long", in: Inbound{SenderID: "u1", ReceiverID: "u2", Text: strings.Repeat("ä", MaxTextChars+1)}, want: ErrTextTooLong},
		{name: "wrong type", in: Inbound{Type: TypeContacts, SenderID: "u1", ReceiverID: "u2", Text: "hi"}, want: ErrUnsupportedType},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.in.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate()=%v want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate()=%v want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeInbound_WireNames(t *testing.T) {
	t.Parallel()

	m, err := DecodeInbound([]byte(`{"senderId":"a","receiverId":"b","text":"hello","senderUsername":"alice"}`))
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}
	if m.SenderID != "a" || m.ReceiverID != "b" || m.Text != "hello" || m.SenderUsername != "alice" {
		t.Fatalf("unexpected decode: %+v", m)
	}

	if _, err := DecodeInbound([]byte(`{not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewContacts_EmptyRosterIsArray(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(NewContacts(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(b); got != `{"type":"contacts","online":[]}` {
		t.Fatalf("unexpected contacts frame: %s", got)
	}
}

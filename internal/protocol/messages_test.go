package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseClientMessageJoin(t *testing.T) {
	raw := []byte(`{"type":"join","gender":"f","preference":"m","language":"en"}`)

	msgType, msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeJoin {
		t.Fatalf("expected type %q, got %q", TypeJoin, msgType)
	}

	m, ok := msg.(JoinMsg)
	if !ok {
		t.Fatalf("expected JoinMsg, got %T", msg)
	}
	if m.Gender != "f" || m.Preference != "m" || m.Language != "en" {
		t.Fatalf("unexpected fields: %+v", m)
	}
}

func TestParseClientMessageChat(t *testing.T) {
	raw := []byte(`{"type":"message","text":"hello","media_id":"","caption":""}`)

	msgType, msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessage {
		t.Fatalf("expected type %q, got %q", TypeMessage, msgType)
	}
	if m := msg.(ChatMsg); m.Text != "hello" {
		t.Fatalf("unexpected text %q", m.Text)
	}
}

func TestParseClientMessageSetProfile(t *testing.T) {
	raw := []byte(`{"type":"set_profile","age":30,"show_typing":false}`)

	_, msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := msg.(SetProfileMsg)
	if m.Age != 30 {
		t.Fatalf("expected age 30, got %d", m.Age)
	}
	if m.ShowTyping == nil || *m.ShowTyping {
		t.Fatalf("expected show_typing false, got %v", m.ShowTyping)
	}
}

func TestParseClientMessageSetProfileOmitsShowTyping(t *testing.T) {
	raw := []byte(`{"type":"set_profile","age":30}`)

	_, msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m := msg.(SetProfileMsg); m.ShowTyping != nil {
		t.Fatal("expected absent show_typing to stay nil")
	}
}

func TestParseClientMessageErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"text":"hi"}`},
		{"unknown type", `{"type":"launch_missiles"}`},
		{"server only type", `{"type":"matched"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := ParseClientMessage([]byte(tc.raw)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewServerMessageInjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeRevealAccepted, RevealAcceptedMsg{PartnerID: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if m["type"] != TypeRevealAccepted {
		t.Fatalf("expected type %q, got %v", TypeRevealAccepted, m["type"])
	}
	if m["partner_id"] != "abc" {
		t.Fatalf("expected partner_id abc, got %v", m["partner_id"])
	}
}

func TestNewServerMessageNilPayload(t *testing.T) {
	data, err := NewServerMessage(TypeWaiting, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if m["type"] != TypeWaiting {
		t.Fatalf("expected type %q, got %v", TypeWaiting, m["type"])
	}
}

func TestValidateChat(t *testing.T) {
	cases := []struct {
		name    string
		msg     ChatMsg
		wantErr bool
	}{
		{"plain text", ChatMsg{Text: "hello"}, false},
		{"media only", ChatMsg{MediaID: "file-123"}, false},
		{"media with caption", ChatMsg{MediaID: "file-123", Caption: "look"}, false},
		{"empty", ChatMsg{}, true},
		{"oversized text", ChatMsg{Text: strings.Repeat("x", MaxMessageBytes+1)}, true},
		{"too many runes", ChatMsg{Text: strings.Repeat("é", MaxTextChars+1)}, true},
		{"invalid utf8", ChatMsg{Text: string([]byte{0xff, 0xfe})}, true},
		{"oversized caption", ChatMsg{MediaID: "f", Caption: strings.Repeat("x", MaxMessageBytes+1)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateChat(tc.msg)
			if tc.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

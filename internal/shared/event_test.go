package shared

import (
	"errors"
	"testing"
)

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("ADD:example.com:A:192.0.2.1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Action != ActionAdd || ev.Domain != "example.com" || ev.RecordType != "A" || ev.Value != "192.0.2.1" {
		t.Fatal("unexpected event:", ev)
	}

	ev, err = ParseEvent("UPDATE:example.com:AAAA:2001:db8::1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Value != "2001:db8::1" {
		t.Fatal("ipv6 value not kept:", ev.Value)
	}

	ev, err = ParseEvent("DELETE:example.com:A")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Action != ActionDelete || ev.Value != "" {
		t.Fatal("unexpected event:", ev)
	}
}

func TestParseEventMalformed(t *testing.T) {
	for _, s := range []string{"", "ADD", "ADD:example.com", "ADD:example.com:A", "DELETE:example.com:A:x", "ADD::A:1"} {
		if _, err := ParseEvent(s); !errors.Is(err, ErrMalformedMessage) {
			t.Fatal("malformed expected for", s, "got", err)
		}
	}
	if _, err := ParseEvent("RENAME:example.com:A:x"); !errors.Is(err, ErrUnknownAction) {
		t.Fatal("unknown action expected, got", err)
	}
}

func TestEventStringRoundTrip(t *testing.T) {
	for _, s := range []string{"ADD:example.com:A:192.0.2.1", "DELETE:example.com:MX", "UPDATE:a.b:TXT:hello"} {
		ev, err := ParseEvent(s)
		if err != nil {
			t.Fatal(err)
		}
		if ev.String() != s {
			t.Fatal("round trip failed:", s, "->", ev.String())
		}
	}
}

func TestValidateIdentity(t *testing.T) {
	if err := ValidateIdentity("example.com", "A"); err != nil {
		t.Fatal(err)
	}
	if ValidateIdentity("", "A") == nil || ValidateIdentity("example.com", "") == nil {
		t.Fatal("empty fields must be rejected")
	}
	if ValidateIdentity("exa mple.com", "A") == nil || ValidateIdentity("a:b", "A") == nil {
		t.Fatal("separator and whitespace must be rejected")
	}
}

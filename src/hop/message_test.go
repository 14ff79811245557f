package hop

import (
	"encoding/json"
	"testing"

	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
)

func newTestMessage(t *testing.T) Message {
	m, err := NewMessage("CommunityA", "1", StrPtr("2"), 5, "valid_token",
		map[string]string{"walk_id": "w1"}, 1700000000)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewNonce(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n, err := NewNonce()
		if err != nil {
			t.Fatal(err)
		}
		if !nonceFormat.MatchString(n) {
			t.Fatalf("nonce %q has the wrong format", n)
		}
		if seen[n] {
			t.Fatalf("nonce %q generated twice", n)
		}
		seen[n] = true
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	m := newTestMessage(t)

	sm, err := m.Sign(key)
	if err != nil {
		t.Fatal(err)
	}

	if err := sm.Verify(&key.PublicKey); err != nil {
		t.Fatalf("signed message should verify: %v", err)
	}

	// What goes over the wire must still verify on the other side
	raw, err := json.Marshal(sm)
	if err != nil {
		t.Fatal(err)
	}
	var decoded SignedMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if err := decoded.Verify(&key.PublicKey); err != nil {
		t.Fatalf("decoded message should verify: %v", err)
	}
}

func TestWrongKey(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	other, _ := keys.GenerateECDSAKey()
	m := newTestMessage(t)

	sm, _ := m.Sign(key)

	if err := sm.Verify(&other.PublicKey); !IsKind(err, BadSignature) {
		t.Fatalf("verifying with another key should yield BadSignature, got %v", err)
	}
}

func TestTamperDetection(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()

	tampers := map[string]func(m *Message){
		"origin":         func(m *Message) { m.Origin = "CommunityX" },
		"current_node":   func(m *Message) { m.CurrentNode = "7" },
		"next_node":      func(m *Message) { m.NextNode = StrPtr("3") },
		"next_node_nil":  func(m *Message) { m.NextNode = nil },
		"next_node_zero": func(m *Message) { m.NextNode = StrPtr("") },
		"remaining_hops": func(m *Message) { m.RemainingHops = 50 },
		"token":          func(m *Message) { m.Token = "other_token" },
		"attributes":     func(m *Message) { m.Attributes["walk_id"] = "w2" },
		"attributes_add": func(m *Message) { m.Attributes["extra"] = "" },
		"timestamp":      func(m *Message) { m.Timestamp++ },
		"nonce":          func(m *Message) { m.Nonce = "00000000000000ff" },
	}

	for name, tamper := range tampers {
		m := newTestMessage(t)
		sm, err := m.Sign(key)
		if err != nil {
			t.Fatal(err)
		}

		sm.Message.Attributes = map[string]string{"walk_id": "w1"}
		tamper(&sm.Message)

		if err := sm.Verify(&key.PublicKey); !IsKind(err, BadSignature) {
			t.Fatalf("tampering with %s should break the signature, got %v", name, err)
		}
	}
}

func TestNilAndEmptyAttributes(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	m := newTestMessage(t)
	m.Attributes = nil

	sm, _ := m.Sign(key)
	sm.Message.Attributes = map[string]string{}

	if err := sm.Verify(&key.PublicKey); err != nil {
		t.Fatalf("nil and empty attributes should sign the same: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(m *Message){
		"origin":         func(m *Message) { m.Origin = "" },
		"current_node":   func(m *Message) { m.CurrentNode = "" },
		"next_node":      func(m *Message) { m.NextNode = StrPtr("") },
		"remaining_hops": func(m *Message) { m.RemainingHops = -1 },
		"timestamp":      func(m *Message) { m.Timestamp = 0 },
		"nonce_empty":    func(m *Message) { m.Nonce = "" },
		"nonce_format":   func(m *Message) { m.Nonce = "not-a-hex-nonce!" },
		"origin_utf8":    func(m *Message) { m.Origin = "Community\xff" },
		"next_utf8":      func(m *Message) { m.NextNode = StrPtr("2\xfe") },
		"token_utf8":     func(m *Message) { m.Token = "tok\xff" },
		"attr_key_utf8":  func(m *Message) { m.Attributes["\xff"] = "x" },
		"attr_val_utf8":  func(m *Message) { m.Attributes["color"] = "r\xffd" },
	}

	for name, breakIt := range cases {
		m := newTestMessage(t)
		breakIt(&m)
		if err := m.Validate(); !IsKind(err, MalformedMessage) {
			t.Fatalf("%s: expected MalformedMessage, got %v", name, err)
		}
	}

	m := newTestMessage(t)
	m.NextNode = nil
	if err := m.Validate(); err != nil {
		t.Fatalf("termination notice should be valid: %v", err)
	}
	if !m.IsTermination() {
		t.Fatalf("message without next_node should be a termination notice")
	}
}

func TestInvalidUTF8NeverVerifies(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	m := newTestMessage(t)
	m.Token = "tok\xff"

	if _, err := m.Sign(key); err == nil {
		t.Fatalf("signing a token that is not valid UTF-8 should fail")
	}

	// A valid message whose token is swapped for invalid UTF-8 after signing
	m = newTestMessage(t)
	sm, err := m.Sign(key)
	if err != nil {
		t.Fatal(err)
	}
	sm.Message.Token = "valid_toke\xfe"

	if err := sm.Verify(&key.PublicKey); err == nil {
		t.Fatalf("tampered token verified")
	}
	if err := sm.Message.Validate(); !IsKind(err, MalformedMessage) {
		t.Fatalf("expected MalformedMessage, got %v", err)
	}
}

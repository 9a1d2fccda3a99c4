package billing

import (
	"errors"
	"testing"
)

func TestPayloadRoundTrip(t *testing.T) {
	original := Payload{
		Kind:      KindCoins,
		UserID:    424242,
		Nonce:     "f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
		ProductID: "coins_500",
	}

	encoded, err := EncodePayload(original)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	decoded, err := ParsePayload(encoded)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, original)
	}
}

func TestPayloadProductIDKeepsDelimiters(t *testing.T) {
	original := Payload{
		Kind:      KindSticker,
		UserID:    7,
		Nonce:     "nonce-1",
		ProductID: "packs:halloween:2025",
	}

	encoded, err := EncodePayload(original)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	decoded, err := ParsePayload(encoded)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if decoded.ProductID != original.ProductID {
		t.Fatalf("product id mangled: got %q want %q", decoded.ProductID, original.ProductID)
	}
}

func TestParsePayloadKeepsUnknownKind(t *testing.T) {
	// Parsing must not validate the kind: an unknown kind has to reach the
	// fulfillment transaction so the payment lands in manual review instead
	// of being swallowed as a malformed payload.
	decoded, err := ParsePayload("v1:mystery-box:7:nonce-1:prod-1")
	if err != nil {
		t.Fatalf("parse unknown-kind payload: %v", err)
	}
	if decoded.Kind != "mystery-box" {
		t.Fatalf("unexpected kind: got %q want %q", decoded.Kind, "mystery-box")
	}
}

func TestEncodePayloadRejectsUnknownKind(t *testing.T) {
	_, err := EncodePayload(Payload{
		Kind:      "mystery-box",
		UserID:    7,
		Nonce:     "n",
		ProductID: "p",
	})
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"too_few":       "v1:coins:7",
		"wrong_version": "v2:coins:7:n:p",
		"bad_user_id":   "v1:coins:abc:n:p",
		"zero_user_id":  "v1:coins:0:n:p",
		"empty_product": "v1:coins:7:n:",
	}

	for name, raw := range cases {
		if _, err := ParsePayload(raw); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
	}
}

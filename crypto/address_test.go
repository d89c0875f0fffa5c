package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x5A}, 20)
	addr := NewAddress(OSWPrefix, raw)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(OSWPrefix)+"1") {
		t.Fatalf("expected osw prefix, got %q", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if decoded.Prefix() != OSWPrefix {
		t.Fatalf("expected prefix %q, got %q", OSWPrefix, decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("payload mismatch: %x", decoded.Bytes())
	}
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for short payload")
		}
	}()
	NewAddress(OSWPrefix, []byte{0x01, 0x02})
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-a-bech32-string"); err == nil {
		t.Fatalf("expected decode error")
	}
	// A well-formed bech32 string with the wrong payload length fails too.
	if _, err := DecodeAddress(NewAddress(OSWPrefix, bytes.Repeat([]byte{0x01}, 20)).String() + "x"); err == nil {
		t.Fatalf("expected rejection of corrupted address")
	}
}

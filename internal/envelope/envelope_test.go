package envelope

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

var (
	testKey = []byte("0123456789abcdef0123456789abcdef")
	testIV  = []byte("abcdef9876543210")
)

func TestRoundTrip(t *testing.T) {
	c, err := NewCodec(testKey, testIV)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	cases := [][]byte{
		[]byte(`{"balance":"50.00","game_balance":"100.00"}`),
		[]byte("x"),
		bytes.Repeat([]byte("a"), 16), // exact block, forces a full padding block
	}
	for _, plain := range cases {
		enc, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		got, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("round trip mismatch: got %q want %q", got, plain)
		}
	}
}

func TestDeriveCodecStable(t *testing.T) {
	a, err := DeriveCodec("hunter2", "lucky", testIV)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveCodec("hunter2", "lucky", testIV)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	enc, err := a.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := b.Decrypt(enc)
	if err != nil {
		t.Fatalf("decrypt with re-derived key: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c, err := NewCodec(testKey, testIV)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if _, err := c.Decrypt("not base64!!!"); err == nil {
		t.Fatal("expected base64 error")
	}
	short := base64.StdEncoding.EncodeToString([]byte("tooshort"))
	if _, err := c.Decrypt(short); !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
	// A wrong key yields undecodable padding, never silent partial data.
	other, err := NewCodec([]byte("ffffffffffffffff"), testIV)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	enc, err := c.Encrypt([]byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if got, err := other.Decrypt(enc); err == nil && bytes.Contains(got, []byte("ok")) {
		t.Fatalf("wrong key produced plausible plaintext: %q", got)
	}
}

func TestNewCodecValidatesSizes(t *testing.T) {
	if _, err := NewCodec([]byte("short"), testIV); err == nil {
		t.Fatal("expected key size error")
	}
	if _, err := NewCodec(testKey, []byte("short")); err == nil {
		t.Fatal("expected iv size error")
	}
}

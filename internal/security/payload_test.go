package security

import (
	"errors"
	"testing"
)

func TestEncryptDecryptJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
		Count int    `json:"count"`
	}

	in := payload{Email: "alice@example.com", Count: 42}
	opaque, err := EncryptJSON(in, "secret-key")
	if err != nil {
		t.Fatalf("EncryptJSON failed: %v", err)
	}

	var out payload
	if err := DecryptJSON(opaque, "secret-key", &out); err != nil {
		t.Fatalf("DecryptJSON failed: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestDecryptJSONWrongKey(t *testing.T) {
	opaque, err := EncryptJSON(map[string]string{"k": "v"}, "secret-key")
	if err != nil {
		t.Fatalf("EncryptJSON failed: %v", err)
	}

	var out map[string]string
	if err := DecryptJSON(opaque, "other-key", &out); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("err = %v, want ErrPayloadInvalid", err)
	}
}

func TestDecryptJSONTampered(t *testing.T) {
	var out map[string]string
	for _, opaque := range []string{"", "!!!", "AAAA", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
		if err := DecryptJSON(opaque, "secret-key", &out); !errors.Is(err, ErrPayloadInvalid) {
			t.Fatalf("DecryptJSON(%q) err = %v, want ErrPayloadInvalid", opaque, err)
		}
	}
}

func TestEncryptJSONNondeterministic(t *testing.T) {
	a, err := EncryptJSON("same", "secret-key")
	if err != nil {
		t.Fatalf("EncryptJSON failed: %v", err)
	}
	b, err := EncryptJSON("same", "secret-key")
	if err != nil {
		t.Fatalf("EncryptJSON failed: %v", err)
	}
	if a == b {
		t.Fatal("ciphertexts must differ per call")
	}
}

package signature

import (
	"crypto/md5"
	"encoding/hex"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewCodec("secret-key")
	fields := map[string]string{
		"order_id":   "42",
		"amount":     "1000",
		"currency":   "KGS",
		"salt":       "abc123",
		"result":     "1",
		"payment_id": "PS-778",
	}

	sig, err := codec.Sign(fields)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !codec.Verify(fields, sig) {
		t.Fatal("Verify rejected a signature it just produced")
	}
}

func TestSignIsCanonical(t *testing.T) {
	t.Parallel()

	// The digest covers values in lexicographic key order, ';'-joined,
	// with the secret appended after a trailing ';'.
	codec := NewCodec("s3cr3t")
	fields := map[string]string{"b": "2", "a": "1", "c": "3"}

	sum := md5.Sum([]byte("1;2;3;s3cr3t"))
	want := hex.EncodeToString(sum[:])

	got, err := codec.Sign(fields)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if got != want {
		t.Fatalf("Sign = %s, want %s", got, want)
	}
}

func TestSignExcludesSignatureField(t *testing.T) {
	t.Parallel()

	codec := NewCodec("secret")
	fields := map[string]string{"order_id": "7", "amount": "100"}

	sig, err := codec.Sign(fields)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	withSig := map[string]string{"order_id": "7", "amount": "100", SigField: sig}
	resigned, err := codec.Sign(withSig)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if resigned != sig {
		t.Fatal("presence of the sig field changed the signature")
	}
	if !codec.Verify(withSig, sig) {
		t.Fatal("Verify rejected fields that still carry the sig entry")
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	t.Parallel()

	codec := NewCodec("secret-key")
	fields := map[string]string{
		"order_id": "42",
		"amount":   "1000",
		"result":   "1",
		"salt":     "xyz",
	}
	sig, err := codec.Sign(fields)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	for key, val := range fields {
		for i := 0; i < len(val); i++ {
			mutated := make(map[string]string, len(fields))
			for k, v := range fields {
				mutated[k] = v
			}
			b := []byte(val)
			b[i] ^= 0x01
			mutated[key] = string(b)

			if codec.Verify(mutated, sig) {
				t.Fatalf("Verify accepted mutation of %q at byte %d", key, i)
			}
		}
	}
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	t.Parallel()

	codec := NewCodec("secret-key")
	fields := map[string]string{"order_id": "42"}
	if codec.Verify(fields, "deadbeef") {
		t.Fatal("Verify accepted a bogus signature")
	}
	if codec.Verify(fields, "") {
		t.Fatal("Verify accepted an empty signature")
	}
}

func TestMissingSecret(t *testing.T) {
	t.Parallel()

	codec := NewCodec("")
	if _, err := codec.Sign(map[string]string{"a": "1"}); err != ErrNoSecret {
		t.Fatalf("Sign error = %v, want ErrNoSecret", err)
	}
	if codec.Verify(map[string]string{"a": "1"}, "anything") {
		t.Fatal("Verify succeeded without a secret")
	}
}

package qr

import (
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const (
	testMerchantBlock = "00020101021132450016qr.demirbank.kg01"
	testTrailerTag    = "6304"
)

func TestChecksumDeterministic(t *testing.T) {
	t.Parallel()

	a := Checksum("00020101021154048500")
	b := Checksum("00020101021154048500")
	if a != b {
		t.Fatalf("checksum not deterministic: %s vs %s", a, b)
	}
	if len(a) != ChecksumLen {
		t.Fatalf("checksum length = %d, want %d", len(a), ChecksumLen)
	}
	if c := Checksum("00020101021154048501"); c == a {
		t.Fatalf("single-byte change did not alter checksum (%s)", c)
	}
}

func TestBuildRecoverableAmount(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testMerchantBlock, testTrailerTag)
	payload, err := b.Build(decimal.RequireFromString("850.00"), "ORD-42")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Walk to the amount field and re-parse its length prefix.
	rest, ok := strings.CutPrefix(payload, testMerchantBlock)
	if !ok {
		t.Fatalf("payload does not start with the merchant block: %s", payload)
	}
	if !strings.HasPrefix(rest, amountTag) {
		t.Fatalf("expected amount tag after merchant block, got %s", rest)
	}
	rest = rest[len(amountTag):]
	n, err := strconv.Atoi(rest[:2])
	if err != nil {
		t.Fatalf("amount length prefix: %v", err)
	}
	if got := rest[2 : 2+n]; got != "85000" {
		t.Fatalf("amount field = %q, want 85000 minor units", got)
	}

	// The trailing 4 characters must be the checksum of everything
	// before them.
	body := payload[:len(payload)-ChecksumLen]
	if !strings.HasSuffix(body, testTrailerTag) {
		t.Fatalf("payload body does not end with trailer tag: %s", body)
	}
	if got, want := payload[len(payload)-ChecksumLen:], Checksum(body); got != want {
		t.Fatalf("appended checksum = %s, recomputed = %s", got, want)
	}
}

func TestBuildReferenceField(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testMerchantBlock, testTrailerTag)
	payload, err := b.Build(decimal.RequireFromString("12.50"), "ORD-7")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(payload, referenceTag+"05ORD-7") {
		t.Fatalf("payload missing length-prefixed reference: %s", payload)
	}
}

func TestBuildRejections(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testMerchantBlock, testTrailerTag)

	tests := []struct {
		name    string
		amount  string
		ref     string
		wantErr error
	}{
		{"fractional minor units", "10.005", "ORD-1", ErrFractionalMinorUnits},
		{"zero amount", "0", "ORD-1", ErrAmountOutOfRange},
		{"negative amount", "-5.00", "ORD-1", ErrAmountOutOfRange},
		{"empty reference", "10.00", "", ErrInvalidReference},
		{"control char in reference", "10.00", "ORD\n42", ErrInvalidReference},
		{"non-ascii reference", "10.00", "ЗАКАЗ-42", ErrInvalidReference},
		{"oversized reference", "10.00", strings.Repeat("R", 100), ErrInvalidReference},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := b.Build(decimal.RequireFromString(tt.amount), tt.ref)
			if err != tt.wantErr {
				t.Fatalf("Build error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildURLVariants(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testMerchantBlock, testTrailerTag)
	amount := decimal.RequireFromString("100.00")

	raw, err := b.BuildURL(amount, "ORD-1", VariantRaw)
	if err != nil {
		t.Fatalf("BuildURL raw: %v", err)
	}

	for _, v := range []Variant{VariantMBank, VariantOptima, VariantBakai} {
		wrapped, err := b.BuildURL(amount, "ORD-1", v)
		if err != nil {
			t.Fatalf("BuildURL %s: %v", v, err)
		}
		if !strings.HasSuffix(wrapped, raw) {
			t.Fatalf("variant %s does not wrap the same payload: %s", v, wrapped)
		}
		if wrapped == raw {
			t.Fatalf("variant %s produced no URL prefix", v)
		}
	}

	if _, err := b.BuildURL(amount, "ORD-1", Variant("nope")); err == nil {
		t.Fatal("BuildURL accepted an unknown variant")
	}
}

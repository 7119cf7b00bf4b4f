// Package qr builds static, scannable interbank transfer payloads. A payload
// is a tag-length-value string: a fixed merchant/acquirer block, the amount
// in minor units, a transfer reference, then a trailer tag and a 4-character
// checksum over everything that precedes it.
package qr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	amountTag    = "54"
	referenceTag = "62"

	maxFieldLen = 99
)

var (
	ErrFractionalMinorUnits = errors.New("qr: amount has fractional minor units")
	ErrAmountOutOfRange     = errors.New("qr: amount out of range")
	ErrInvalidReference     = errors.New("qr: invalid reference")
)

// Variant selects the bank app URL scheme wrapping the payload. The payload
// body and checksum are identical across variants.
type Variant string

const (
	VariantRaw    Variant = ""
	VariantMBank  Variant = "mbank"
	VariantOptima Variant = "optima"
	VariantBakai  Variant = "bakai"
)

var variantPrefixes = map[Variant]string{
	VariantRaw:    "",
	VariantMBank:  "https://app.mbank.kg/qr/#",
	VariantOptima: "https://optima24.kg/qr/#",
	VariantBakai:  "https://bakai24.app/#",
}

type Builder struct {
	merchantBlock string
	trailerTag    string
}

func NewBuilder(merchantBlock, trailerTag string) *Builder {
	return &Builder{merchantBlock: merchantBlock, trailerTag: trailerTag}
}

// Build encodes amount and reference into the payload template and appends
// the checksum. The amount must be a whole number of minor units.
func (b *Builder) Build(amount decimal.Decimal, reference string) (string, error) {
	minor, err := minorUnits(amount)
	if err != nil {
		return "", err
	}
	if err := validateReference(reference); err != nil {
		return "", err
	}

	body := b.merchantBlock +
		field(amountTag, minor) +
		field(referenceTag, reference) +
		b.trailerTag
	return body + Checksum(body), nil
}

// BuildURL wraps the payload in the given bank variant's URL scheme.
func (b *Builder) BuildURL(amount decimal.Decimal, reference string, variant Variant) (string, error) {
	prefix, ok := variantPrefixes[variant]
	if !ok {
		return "", fmt.Errorf("qr: unknown bank variant %q", variant)
	}
	payload, err := b.Build(amount, reference)
	if err != nil {
		return "", err
	}
	return prefix + payload, nil
}

func field(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// minorUnits renders amount as a decimal digit string of minor units.
// 850.00 becomes "85000". Sub-minor-unit amounts are rejected rather than
// rounded.
func minorUnits(amount decimal.Decimal) (string, error) {
	shifted := amount.Shift(2)
	if !shifted.IsInteger() {
		return "", ErrFractionalMinorUnits
	}
	if shifted.Sign() <= 0 {
		return "", ErrAmountOutOfRange
	}
	s := shifted.String()
	if len(s) > maxFieldLen {
		return "", ErrAmountOutOfRange
	}
	return s, nil
}

func validateReference(ref string) error {
	if ref == "" || len(ref) > maxFieldLen {
		return ErrInvalidReference
	}
	for i := 0; i < len(ref); i++ {
		// Printable ASCII only; anything else breaks scanner parsing of
		// the fixed-width length prefixes.
		if ref[i] < 0x20 || ref[i] > 0x7e {
			return ErrInvalidReference
		}
	}
	return nil
}

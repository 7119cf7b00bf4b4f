// Package signature implements the field-map MAC exchanged with the payment
// gateway. The recipe is fixed by the gateway contract: values of all fields
// except the signature itself, joined by ';' in lexicographic key order,
// followed by ';' and the shared secret, digested with md5 and rendered as
// lowercase hex.
package signature

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// SigField is the field name the gateway uses to carry the signature.
// It is always excluded from the signed material.
const SigField = "sig"

var ErrNoSecret = errors.New("signature: secret key is not configured")

type Codec struct {
	secret string
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: secret}
}

// Sign computes the signature over fields. The SigField entry, if present,
// is ignored.
func (c *Codec) Sign(fields map[string]string) (string, error) {
	if c.secret == "" {
		return "", ErrNoSecret
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == SigField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(fields[k])
		b.WriteByte(';')
	}
	b.WriteString(c.secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the signature over fields and compares it to sig in
// constant time. Malformed input never panics, it just fails verification.
func (c *Codec) Verify(fields map[string]string, sig string) bool {
	want, err := c.Sign(fields)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}

package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Stored blobs begin with a single schema-version byte followed by a CBOR
// map with integer keys. Readers reject versions they do not know.
const codecVersionCurrent = 1

var (
	// ErrCorrupt is returned when a stored blob cannot be decoded.
	ErrCorrupt = errors.New("credential blob corrupt")

	// ErrUnknownVersion is returned when a blob was written by a newer
	// schema than this build understands.
	ErrUnknownVersion = errors.New("unknown credential schema version")
)

type record struct {
	AccessToken      string `cbor:"1,keyasint"`
	RefreshToken     string `cbor:"2,keyasint"`
	AccessExpiresAt  int64  `cbor:"3,keyasint"`
	RefreshExpiresAt int64  `cbor:"4,keyasint,omitempty"`
	IssuedAt         int64  `cbor:"5,keyasint"`
	RememberMe       bool   `cbor:"6,keyasint,omitempty"`
	RoleClaim        string `cbor:"7,keyasint,omitempty"`
}

// Encode serializes a credential into the versioned wire form.
func Encode(c *Credential) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil credential")
	}

	rec := record{
		AccessToken:     c.AccessToken,
		RefreshToken:    c.RefreshToken,
		AccessExpiresAt: c.AccessExpiresAt.UnixMilli(),
		IssuedAt:        c.IssuedAt.UnixMilli(),
		RememberMe:      c.RememberMe,
		RoleClaim:       c.RoleClaim,
	}
	if !c.RefreshExpiresAt.IsZero() {
		rec.RefreshExpiresAt = c.RefreshExpiresAt.UnixMilli()
	}

	body, err := cbor.Marshal(rec)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, codecVersionCurrent)
	return append(out, body...), nil
}

// Decode parses a versioned blob back into a credential.
func Decode(data []byte) (*Credential, error) {
	if len(data) < 2 {
		return nil, ErrCorrupt
	}
	if data[0] != codecVersionCurrent {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, data[0])
	}

	var rec record
	if err := cbor.Unmarshal(data[1:], &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.AccessToken == "" || rec.AccessExpiresAt == 0 || rec.IssuedAt == 0 {
		return nil, ErrCorrupt
	}

	c := &Credential{
		AccessToken:     rec.AccessToken,
		RefreshToken:    rec.RefreshToken,
		AccessExpiresAt: time.UnixMilli(rec.AccessExpiresAt),
		IssuedAt:        time.UnixMilli(rec.IssuedAt),
		RememberMe:      rec.RememberMe,
		RoleClaim:       rec.RoleClaim,
	}
	if rec.RefreshExpiresAt != 0 {
		c.RefreshExpiresAt = time.UnixMilli(rec.RefreshExpiresAt)
	}
	return c, nil
}

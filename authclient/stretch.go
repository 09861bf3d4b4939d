package authclient

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	quickStretchIterations = 1000
	stretchedKeyLength     = 32

	quickStretchSaltPrefix = "identity.mozilla.com/picl/v1/quickStretch:"
	authPWInfo             = "identity.mozilla.com/picl/v1/authPW"
	unwrapBKeyInfo         = "identity.mozilla.com/picl/v1/unwrapBkey"
)

// Credentials are the values derived from a password before it leaves the
// client. The raw password is never sent.
type Credentials struct {
	Email      string
	AuthPW     string
	UnwrapBKey string
}

// StretchPassword derives the auth password and unwrap key for email.
func StretchPassword(email, password string) (Credentials, error) {
	quickStretched := pbkdf2.Key(
		[]byte(password),
		[]byte(quickStretchSaltPrefix+email),
		quickStretchIterations,
		stretchedKeyLength,
		sha256.New,
	)

	authPW, err := deriveKey(quickStretched, authPWInfo)
	if err != nil {
		return Credentials{}, err
	}
	unwrapBKey, err := deriveKey(quickStretched, unwrapBKeyInfo)
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{
		Email:      email,
		AuthPW:     hex.EncodeToString(authPW),
		UnwrapBKey: hex.EncodeToString(unwrapBKey),
	}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	out := make([]byte, stretchedKeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

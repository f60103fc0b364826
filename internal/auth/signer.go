// Package auth signs Remote ID authentication messages with an ECDSA P-256 key.
package auth

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"
)

// SignatureSize is the number of signature bytes carried by an Authentication message.
const SignatureSize = 16

// placeholderByte fills the authentication payload when no signature is available.
const placeholderByte = 0xAA

var (
	// ErrSigningFailed wraps every failure to produce a signature.
	ErrSigningFailed = errors.New("signing failed")
	// ErrNoKey is returned when no private key material is supplied.
	ErrNoKey = errors.New("no private key")
	// ErrUnsupportedKey is returned for keys that are not ECDSA P-256.
	ErrUnsupportedKey = errors.New("unsupported private key")
)

// Placeholder returns the fixed bytes broadcast in place of a signature.
func Placeholder() []byte {
	return bytes.Repeat([]byte{placeholderByte}, SignatureSize)
}

// Message returns the canonical signed message: "<identity>:<unix seconds>".
func Message(identity string, at time.Time) []byte {
	msg := make([]byte, 0, len(identity)+12)
	msg = append(msg, identity...)
	msg = append(msg, ':')
	return strconv.AppendInt(msg, at.Unix(), 10)
}

// Signer signs authentication messages with a single key.
type Signer struct {
	key  *ecdsa.PrivateKey
	rand io.Reader
}

// NewSigner parses raw key material and returns a signer for it.
func NewSigner(raw []byte) (*Signer, error) {
	key, err := ParsePrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, rand: rand.Reader}, nil
}

// Sign signs the canonical message for identity at the given time and returns the
// first SignatureSize bytes of the fixed width r||s encoding.
func (s *Signer) Sign(identity string, at time.Time) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, ErrNoKey)
	}

	r, ss, err := s.sign(Message(identity, at))
	if err != nil {
		return nil, err
	}

	size := (s.key.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	ss.FillBytes(sig[size:])

	return sig[:SignatureSize], nil
}

func (s *Signer) sign(msg []byte) (*big.Int, *big.Int, error) {
	digest := sha256.Sum256(msg)
	r, ss, err := ecdsa.Sign(s.rand, s.key, digest[:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return r, ss, nil
}

// SignOrPlaceholder is Sign falling back to the placeholder. A nil signer,
// left by a missing or rejected key, always yields the placeholder.
func (s *Signer) SignOrPlaceholder(identity string, at time.Time) ([]byte, error) {
	sig, err := s.Sign(identity, at)
	if err != nil {
		return Placeholder(), err
	}
	return sig, nil
}

// ParsePrivateKey parses an ECDSA P-256 private key. The key may be PEM encoded
// ("PRIVATE KEY" or "EC PRIVATE KEY"), base64 encoded DER or raw DER, in either
// PKCS #8 or SEC 1 form.
func ParsePrivateKey(raw []byte) (*ecdsa.PrivateKey, error) {
	der, err := keyDER(raw)
	if err != nil {
		return nil, err
	}

	key, err := parseDER(der)
	if err != nil {
		return nil, err
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s", ErrUnsupportedKey, key.Curve.Params().Name)
	}
	return key, nil
}

func keyDER(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrNoKey
	}

	if block, _ := pem.Decode(trimmed); block != nil {
		switch block.Type {
		case "PRIVATE KEY", "EC PRIVATE KEY":
			return block.Bytes, nil
		default:
			return nil, fmt.Errorf("%w: PEM block %q", ErrUnsupportedKey, block.Type)
		}
	}

	if der, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
		return der, nil
	}
	return raw, nil
}

func parseDER(der []byte) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
		}
		return ecKey, nil
	}

	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}

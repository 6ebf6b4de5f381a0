package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// SigningContext bundles everything needed to sign a token: the private key,
// the key identifier the registry knows the matching public key by, the
// issuer claim and the audience used when a request does not name a service.
// It is built once at startup and passed by reference into the service.
type SigningContext struct {
	Key             *rsa.PrivateKey
	KeyId           string
	Issuer          string
	DefaultAudience string
}

// LoadSigningContext reads a PEM-encoded PKCS#8 RSA private key from
// keyPath. A failure here is a startup error: the process must not come up
// without a working signing key.
func LoadSigningContext(keyPath, keyId, issuer, defaultAudience string) (*SigningContext, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read signing key %s: %w", keyPath, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signing key %s: no PEM block found", keyPath)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signing key %s: %w", keyPath, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not an RSA private key")
	}

	return &SigningContext{
		Key:             key,
		KeyId:           keyId,
		Issuer:          issuer,
		DefaultAudience: defaultAudience,
	}, nil
}

package credentials

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// secretLen is the length of a derived directory credential in bytes.
// 32 bytes keeps the base64url form inside common password length limits.
const secretLen = 32

// Deriver computes deterministic directory credentials for externally
// identified accounts, so the provider's own token never has to be stored.
// It is the only holder of the server key; nothing else reads it.
type Deriver struct {
	key []byte
}

// NewDeriver builds a Deriver from the server secret. An empty secret is a
// configuration error, not a runtime condition.
func NewDeriver(serverSecret string) (*Deriver, error) {
	if serverSecret == "" {
		return nil, errors.New("credentials: server secret is empty")
	}
	return &Deriver{key: []byte(serverSecret)}, nil
}

// Derive returns the directory credential for a Steam ID. The same input
// always yields the same output; rotating the server key changes every
// output and therefore forces re-provisioning of Steam-only accounts.
func (d *Deriver) Derive(steamID string) (string, error) {
	if steamID == "" {
		return "", errors.New("credentials: steam id is empty")
	}

	r := hkdf.New(sha256.New, d.key, nil, []byte("steam-directory-credential:"+steamID))

	secret := make([]byte, secretLen)
	if _, err := io.ReadFull(r, secret); err != nil {
		return "", fmt.Errorf("credentials: derive: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(secret), nil
}

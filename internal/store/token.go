package store

import (
	"os"

	"github.com/zalando/go-keyring"

	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/secure"
)

const (
	// TokenEnvVar is the environment variable the bws CLI itself honors.
	TokenEnvVar = "BWS_ACCESS_TOKEN"

	keyringService = "vaultmig"
	keyringUser    = "bws-access-token"
)

// AccessToken holds the machine-account token in protected memory. It is
// read once at startup and never logged or written to any artifact.
type AccessToken struct {
	buf *secure.Buffer
}

// LoadToken resolves the access token: environment variable first, then the
// OS keyring. A missing token is fatal; nothing can run without it.
func LoadToken() (*AccessToken, error) {
	if raw := os.Getenv(TokenEnvVar); raw != "" {
		return &AccessToken{buf: secure.NewBuffer([]byte(raw))}, nil
	}

	if raw, err := keyring.Get(keyringService, keyringUser); err == nil && raw != "" {
		return &AccessToken{buf: secure.NewBuffer([]byte(raw))}, nil
	}

	return nil, vmerrors.Fatal(vmerrors.UserError{
		Message:    "No Bitwarden Secrets Manager access token found",
		Suggestion: "Export " + TokenEnvVar + ", or store one with: vaultmig token store",
	})
}

// NewToken wraps a literal token value, primarily for tests.
func NewToken(raw string) *AccessToken {
	return &AccessToken{buf: secure.NewBuffer([]byte(raw))}
}

// Env renders the token as a subprocess environment entry.
func (t *AccessToken) Env() ([]string, error) {
	raw, err := t.buf.String()
	if err != nil {
		return nil, err
	}
	return []string{TokenEnvVar + "=" + raw}, nil
}

// Destroy wipes the token from memory. Idempotent.
func (t *AccessToken) Destroy() {
	t.buf.Destroy()
}

// StoreTokenInKeyring saves a token in the OS keyring for later runs.
func StoreTokenInKeyring(raw string) error {
	return keyring.Set(keyringService, keyringUser, raw)
}

// DeleteTokenFromKeyring removes a previously stored token.
func DeleteTokenFromKeyring() error {
	return keyring.Delete(keyringService, keyringUser)
}

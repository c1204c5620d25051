package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pinkypartner/pinkypartner/pkg/crypto"
)

const jwtSecretBytes = 48

const defaultIssuer = "pinkypartner"

// ApplyRuntimeDefaults fills the settings a server cannot start without. A missing JWT
// secret is replaced with a random one, which invalidates sessions on every restart.
// The returned keys name what was generated so callers can log it without the value.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated = append(generated, "auth.jwt.secret")
	}

	if strings.TrimSpace(cfg.Auth.JWT.Issuer) == "" {
		cfg.Auth.JWT.Issuer = defaultIssuer
	}

	return generated, nil
}

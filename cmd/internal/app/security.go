package app

import (
	"errors"
	"fmt"

	"rsvp/cmd/internal/auth/session"
	"rsvp/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy and returns
// the refresh-value hasher the session service must use.
func ValidateSecurityConfig(cfg Config, sess session.Config) (token.Hasher, error) {
	if len(sess.AccessSecret) < session.MinSecretBytes {
		return token.Hasher{}, fmt.Errorf("security policy: RSVP_JWT_ACCESS_SECRET is shorter than %d bytes", session.MinSecretBytes)
	}

	h, err := token.HasherFromEnv(cfg.RequireTokenHMAC)
	switch {
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.Hasher{}, errors.New("security policy: RSVP_REQUIRE_TOKEN_HMAC=true but RSVP_TOKEN_HMAC_KEY is missing")
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return token.Hasher{}, fmt.Errorf("security policy: RSVP_REQUIRE_TOKEN_HMAC=true but RSVP_TOKEN_HMAC_KEY is too short (min %d bytes)", token.MinHMACKeyBytes)
	case err != nil:
		return token.Hasher{}, err
	}

	if cfg.RequireTokenHMAC && !h.Keyed() {
		return token.Hasher{}, errors.New("security policy: RSVP_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return h, nil
}

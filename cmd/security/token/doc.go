// Package token hashes opaque credentials before they reach storage.
//
// Two modes are supported:
//   - HMAC-SHA256(value, key) when RSVP_TOKEN_HMAC_KEY is configured;
//   - plain SHA-256(value) for local development.
//
// Both produce a 64-char lowercase hex digest, so stores never see the
// plaintext and can index the digest directly.
package token

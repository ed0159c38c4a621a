// Package session implements the RSVP credential lifecycle.
//
// A login yields a pair: a short-lived HS256 access token that any holder of
// the secret can verify without I/O, and an opaque long-lived refresh value
// that is stored (hashed) server-side and may be exchanged exactly once.
// Exchange is rotate-on-use: the old value is consumed atomically and a fresh,
// independent pair is issued. Reuse of a consumed value is rejected exactly
// like an unknown value.
//
// HTTP transport lives in package authapi; the client-side refresh
// coordinator lives in package authclient.
package session

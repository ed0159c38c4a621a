// Package password hashes and verifies account passwords with Argon2id.
//
// Encoded hashes use the PHC layout
// ($argon2id$v=19$m=<kib>,t=<iter>,p=<par>$<salt>$<key>) and are treated as
// untrusted input on Verify: parameters far above the configured cost are
// refused instead of computed.
package password

// Package identity owns RSVP user accounts: local (email + password) and
// federated ones. Session code only asks it whether a subject still exists
// and what its email is; everything else about a user stays here.
package identity

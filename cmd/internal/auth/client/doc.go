// Package authclient is the client side of the session lifecycle.
//
// A Coordinator holds the current access token and guarantees that at most
// one refresh rotation is in flight; Transport retries a request that failed
// with 401 exactly once after that shared rotation settles.
package authclient

package authapi

import (
	"context"
	"errors"
)

// ErrAssertionInvalid is returned by a FederatedVerifier for any assertion it
// does not accept.
var ErrAssertionInvalid = errors.New("federated assertion invalid")

// FederatedIdentity is what an external provider vouches for.
type FederatedIdentity struct {
	Issuer  string
	Subject string
	Email   string
	Name    string
}

// FederatedVerifier turns an opaque provider assertion into a verified identity.
// The provider protocol lives entirely behind this interface; without one the
// callback route answers 501.
type FederatedVerifier interface {
	VerifyAssertion(ctx context.Context, assertion string) (FederatedIdentity, error)
}

// FederatedVerifierFunc adapts a function to FederatedVerifier.
type FederatedVerifierFunc func(ctx context.Context, assertion string) (FederatedIdentity, error)

func (f FederatedVerifierFunc) VerifyAssertion(ctx context.Context, assertion string) (FederatedIdentity, error) {
	return f(ctx, assertion)
}

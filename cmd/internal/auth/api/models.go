package authapi

import (
	"time"

	"rsvp/cmd/identity"
	"rsvp/cmd/internal/auth/session"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// tokenResponse never carries the refresh value; that travels only in the cookie.
type tokenResponse struct {
	AccessToken     string        `json:"access_token"`
	AccessExpiresAt time.Time     `json:"access_expires_at"`
	User            *userResponse `json:"user,omitempty"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Provider:  string(u.Provider),
		CreatedAt: u.CreatedAt,
	}
}

func toTokenResponse(p session.Pair, u *identity.User) tokenResponse {
	resp := tokenResponse{
		AccessToken:     p.AccessToken,
		AccessExpiresAt: p.AccessExpiresAt,
	}
	if u != nil {
		ur := toUserResponse(*u)
		resp.User = &ur
	}
	return resp
}

// Package auth resolves callers of the HTTP APIs into principals.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is returned for any missing or rejected credential.
	ErrUnauthorized = errors.New("Unauthorized")

	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

const bearerPrefix = "Bearer "

// Kind says how a principal authenticated.
type Kind string

const (
	KindSession        Kind = "session"
	KindServiceAccount Kind = "service_account"
)

// Principal is an authenticated caller acting as one board owner.
type Principal struct {
	UserID string
	Kind   Kind
	Name   string
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errMissingAuthorization
	}
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", errBadAuthorization
	}
	token := strings.TrimSpace(h[len(bearerPrefix):])
	if token == "" {
		return "", errBadAuthorization
	}
	return token, nil
}

// Resolver maps a presented bearer token to a principal.
type Resolver interface {
	Resolve(token string) (Principal, error)
}

// ServiceAccount is one static API token bound to a board owner.
type ServiceAccount struct {
	Name   string
	Token  string
	UserID string
}

// ServiceAccounts resolves static tokens. Lookups are exact and
// constant-time per account; an empty registry rejects everything.
type ServiceAccounts struct {
	accounts []ServiceAccount
}

// NewServiceAccounts builds a registry, skipping accounts with an empty
// token or owner so that missing configuration fails closed.
func NewServiceAccounts(accounts ...ServiceAccount) *ServiceAccounts {
	sa := &ServiceAccounts{}
	for _, a := range accounts {
		if a.Token == "" || a.UserID == "" {
			continue
		}
		sa.accounts = append(sa.accounts, a)
	}
	return sa
}

// Len returns the number of usable accounts.
func (s *ServiceAccounts) Len() int { return len(s.accounts) }

// Resolve implements Resolver.
func (s *ServiceAccounts) Resolve(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthorized
	}
	for _, a := range s.accounts {
		if subtle.ConstantTimeCompare([]byte(a.Token), []byte(token)) == 1 {
			return Principal{UserID: a.UserID, Kind: KindServiceAccount, Name: a.Name}, nil
		}
	}
	return Principal{}, ErrUnauthorized
}

// Authenticate resolves the request's bearer token. Every failure maps to
// ErrUnauthorized.
func Authenticate(r *http.Request, res Resolver) (Principal, error) {
	token, err := BearerToken(r)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	p, err := res.Resolve(token)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	return p, nil
}

package registry

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"zerospeech.io/zrc/pkg/errors"
)

// Identity is what the oauth endpoint returns for a verified token.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

// OIDCAuthenticator verifies bearer tokens against an OIDC issuer.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCAuthenticator(ctx context.Context, issuer string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return &OIDCAuthenticator{verifier: verifier}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	idtoken, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, errors.NewUnauthorizedError(err.Error())
	}
	claims := struct {
		Email string `json:"email"`
	}{}
	// claims are optional, a token without an email is still valid
	_ = idtoken.Claims(&claims)
	return &Identity{Subject: idtoken.Subject, Email: claims.Email}, nil
}

func BearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	return token, token != ""
}

// Oauth verifies the caller's bearer token and echoes the identity, which is
// how `zrc user login` checks a token before storing it.
func (s *Registry) Oauth(w http.ResponseWriter, r *http.Request) {
	if s.Auth == nil {
		ResponseError(w, errors.NewUnsupportedError("this server has no oidc issuer configured"))
		return
	}
	token, ok := BearerToken(r)
	if !ok {
		ResponseError(w, errors.NewUnauthorizedError("missing bearer token"))
		return
	}
	identity, err := s.Auth.Authenticate(r.Context(), token)
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, identity)
}

// NewOIDCAuthFilter guards mutating requests behind token verification.
// Reads stay open so `zrc` works without a session.
func NewOIDCAuthFilter(auth *OIDCAuthenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			next.ServeHTTP(w, r)
			return
		}
		token, ok := BearerToken(r)
		if !ok {
			ResponseError(w, errors.NewUnauthorizedError("this operation requires a bearer token, run `zrc user login`"))
			return
		}
		if _, err := auth.Authenticate(r.Context(), token); err != nil {
			ResponseError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

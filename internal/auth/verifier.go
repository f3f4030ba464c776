package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// Verifier checks bearer tokens minted by the external identity provider.
// This service never issues tokens; it only needs the verified user id
// and a couple of profile claims.
type Verifier struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	Now        func() time.Time
}

func NewVerifier(signingKey, issuer, audience string) *Verifier {
	return &Verifier{
		SigningKey: []byte(signingKey),
		Issuer:     issuer,
		Audience:   audience,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (v *Verifier) AuthenticateRequest(r *http.Request) (Principal, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Principal{}, ErrUnauthorized
	}
	return v.Verify(parts[1])
}

func (v *Verifier) Verify(rawToken string) (Principal, error) {
	if len(v.SigningKey) == 0 {
		return Principal{}, fmt.Errorf("%w: token signing key not configured", ErrUnauthorized)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.Now),
	}
	if iss := strings.TrimSpace(v.Issuer); iss != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(v.Audience); aud != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(aud))
	}

	parsed, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.SigningKey, nil
	}, parserOpts...)
	if err != nil || !parsed.Valid {
		return Principal{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	userID := claimString(claims["sub"])
	if userID == "" {
		return Principal{}, ErrUnauthorized
	}

	role := claimString(claims["role"])
	if role == "" {
		role = "authenticated"
	}

	return Principal{
		UserID: userID,
		Email:  claimString(claims["email"]),
		Role:   role,
	}, nil
}

func claimString(v any) string {
	s, _ := v.(string)
	return s
}

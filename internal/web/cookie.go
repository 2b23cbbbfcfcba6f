// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

const cookieIssuer = "labelhub"

// CookieOptions configures a CookieCodec.
type CookieOptions struct {
	Name   string
	Secret []byte
	Secure bool
	// Now overrides the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// CookieCodec carries the session token in a signed cookie. The cookie value
// is an HS256 JWT whose "sid" claim is the opaque session token, so a forged
// or altered cookie is rejected without a store lookup.
type CookieCodec struct {
	name   string
	secret []byte
	secure bool
	now    func() time.Time
}

type sessionClaims struct {
	SessionToken string `json:"sid"`
	jwt.RegisteredClaims
}

// NewCookieCodec validates opts and creates a CookieCodec.
func NewCookieCodec(opts CookieOptions) (*CookieCodec, error) {
	if opts.Name == "" {
		return nil, oops.Code("COOKIE_INVALID_CONFIG").Errorf("cookie name is required")
	}
	if len(opts.Secret) == 0 {
		return nil, oops.Code("COOKIE_INVALID_CONFIG").Errorf("session secret is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CookieCodec{
		name:   opts.Name,
		secret: opts.Secret,
		secure: opts.Secure,
		now:    now,
	}, nil
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string {
	return c.name
}

// Encode signs token into a cookie value that expires at expiresAt.
func (c *CookieCodec) Encode(token string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		SessionToken: token,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("COOKIE_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Decode verifies value and returns the session token it carries.
func (c *CookieCodec) Decode(value string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", oops.Code("COOKIE_INVALID").Wrap(err)
	}
	if !token.Valid || claims.SessionToken == "" {
		return "", oops.Code("COOKIE_INVALID").Errorf("cookie carries no session")
	}
	return claims.SessionToken, nil
}

// Token reads and verifies the session cookie on r.
func (c *CookieCodec) Token(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", oops.Code("COOKIE_MISSING").Wrap(err)
	}
	return c.Decode(cookie.Value)
}

// Set writes the session cookie for token.
func (c *CookieCodec) Set(w http.ResponseWriter, token string, expiresAt time.Time) error {
	value, err := c.Encode(token, expiresAt)
	if err != nil {
		return err
	}
	maxAge := int(expiresAt.Sub(c.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

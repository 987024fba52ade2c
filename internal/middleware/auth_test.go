package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/entitycache/pkg/httpcontext"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

// run passes a request through Identity and returns the status and the subject seen downstream.
func run(cfg IdentityConfig, authorization, spoofed string) (int, string, bool) {
	var (
		seen    string
		reached bool
	)
	h := Identity(cfg, nil)(func(ctx *fasthttp.RequestCtx) {
		reached = true
		seen = string(ctx.Request.Header.Peek(httpcontext.HeaderSubject))
	})

	var rc fasthttp.RequestCtx
	if authorization != "" {
		rc.Request.Header.Set("Authorization", authorization)
	}
	if spoofed != "" {
		rc.Request.Header.Set(httpcontext.HeaderSubject, spoofed)
	}
	h(&rc)
	return rc.Response.StatusCode(), seen, reached
}

func TestIdentity_ValidToken(t *testing.T) {
	tok := sign(t, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(time.Hour).Unix()}, secret)

	status, subject, reached := run(IdentityConfig{Secret: secret}, "Bearer "+tok, "admin")
	assert.True(t, reached)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "u1", subject)
}

func TestIdentity_SubClaimAndIssuer(t *testing.T) {
	tok := sign(t, jwt.MapClaims{"sub": "u2", "iss": "entitycache"}, secret)

	_, subject, reached := run(IdentityConfig{Secret: secret, Issuer: "entitycache"}, tok, "")
	assert.True(t, reached)
	assert.Equal(t, "u2", subject)

	_, _, reached = run(IdentityConfig{Secret: secret, Issuer: "other"}, tok, "")
	assert.False(t, reached)
}

func TestIdentity_AnonymousDropsSpoofedSubject(t *testing.T) {
	status, subject, reached := run(IdentityConfig{Secret: secret}, "", "admin")
	assert.True(t, reached)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Empty(t, subject)

	status, _, reached = run(IdentityConfig{Secret: secret, Required: true}, "", "")
	assert.False(t, reached)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
}

func TestIdentity_RejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"wrong key":  sign(t, jwt.MapClaims{"user_id": "u1"}, "other"),
		"expired":    sign(t, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, secret),
		"no subject": sign(t, jwt.MapClaims{"role": "x"}, secret),
		"garbage":    "not-a-token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			status, _, reached := run(IdentityConfig{Secret: secret}, "Bearer "+tok, "")
			assert.False(t, reached)
			assert.Equal(t, fasthttp.StatusUnauthorized, status)
		})
	}
}

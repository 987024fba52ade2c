package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/entitycache/pkg/httpcontext"
)

// IdentityConfig controls how bearer tokens become a request subject.
type IdentityConfig struct {
	Secret string
	Issuer string
	// Required rejects requests without a token. Otherwise they proceed anonymously.
	Required bool
}

// Identity verifies an HS256 bearer token and exposes its subject through the
// X-User-ID header. A client-supplied X-User-ID is always discarded.
func Identity(cfg IdentityConfig, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(httpcontext.HeaderSubject)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				if cfg.Required {
					ctx.SetStatusCode(fasthttp.StatusUnauthorized)
					return
				}
				next(ctx)
				return
			}

			subject, err := parseSubject(tokenString, cfg)
			if err != nil {
				logger.Warn("invalid jwt token", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			ctx.Request.Header.Set(httpcontext.HeaderSubject, subject)
			next(ctx)
		}
	}
}

func parseSubject(tokenString string, cfg IdentityConfig) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("no signing secret configured")
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token not valid")
	}
	if cfg.Issuer != "" && !claims.VerifyIssuer(cfg.Issuer, true) {
		return "", fmt.Errorf("unexpected issuer")
	}
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("token has no subject")
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

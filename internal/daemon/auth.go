package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"corrflow/internal/services"
	"corrflow/internal/store"
)

// Claims is the bearer token payload issued by the login service.
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	RoleID   int64  `json:"role_id"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// actorResolver loads the acting user for a verified token.
type actorResolver func(ctx context.Context, userID int64) (*store.User, error)

type authenticator struct {
	secret  []byte
	issuer  string
	resolve actorResolver
}

func newAuthenticator(secret, issuer string, resolve actorResolver) *authenticator {
	return &authenticator{secret: []byte(secret), issuer: strings.TrimSpace(issuer), resolve: resolve}
}

// middleware validates the bearer token and stores the acting user in the
// request context. When allowQuery is set, a token may also arrive as the
// token query parameter; browsers cannot set headers on websocket upgrades.
func (a *authenticator) middleware(allowQuery bool, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r, allowQuery)
			if err != nil {
				onError(w, r, err)
				return
			}
			actor, err := a.authenticate(r.Context(), raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			ctx = services.WithUserID(ctx, actor.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *authenticator) authenticate(ctx context.Context, raw string) (*store.User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, services.Wrap(services.ErrUnauthenticated, "auth", "verify token", "invalid token", err)
	}
	if claims.ID <= 0 {
		return nil, services.Wrap(services.ErrUnauthenticated, "auth", "verify token", "token has no user id", nil)
	}
	actor, err := a.resolve(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) || errors.Is(err, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrUnauthenticated, "auth", "resolve user",
				fmt.Sprintf("user %d is not active", claims.ID), nil)
		}
		return nil, err
	}
	return actor, nil
}

func bearerToken(r *http.Request, allowQuery bool) (string, error) {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", services.Wrap(services.ErrUnauthenticated, "auth", "read token", "invalid authorization header", nil)
		}
		return parts[1], nil
	}
	if allowQuery {
		if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
			return token, nil
		}
	}
	return "", services.Wrap(services.ErrUnauthenticated, "auth", "read token", "missing bearer token", nil)
}

// actorFrom returns the authenticated user stored by the auth middleware.
func actorFrom(ctx context.Context) *store.User {
	actor, _ := ctx.Value(actorKey{}).(*store.User)
	return actor
}

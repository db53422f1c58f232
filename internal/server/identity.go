package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"tailscale.com/client/tailscale/apitype"
)

// UserIDHeader carries the caller's user id when a trusted gateway sits in front of the service.
const UserIDHeader = "X-User-ID"

type contextKey int

const (
	userIDKey contextKey = iota
	userInfoKey
)

// UserInfo describes the authenticated caller.
type UserInfo struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// WithUser returns a context carrying the caller's identity.
func WithUser(ctx context.Context, info UserInfo) context.Context {
	ctx = context.WithValue(ctx, userIDKey, info.ID)
	return context.WithValue(ctx, userInfoKey, info)
}

// UserIDFromContext returns the caller's user id, or "" if no identity middleware ran.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return UserInfo{}
}

// mustUserID extracts the user id or writes a 401 response.
func mustUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := UserIDFromContext(r.Context())
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return "", false
	}
	return id, true
}

// HeaderIdentity trusts the X-User-ID header set by an upstream gateway.
// It must be combined with APIKeyAuth so only the gateway can set it.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			http.Error(w, `{"error":"missing X-User-ID header"}`, http.StatusUnauthorized)
			return
		}
		info := UserInfo{ID: id, Login: id, DisplayName: id}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), info)))
	})
}

// JWTIdentity verifies an HS256 bearer token and uses its subject as the user id.
func JWTIdentity(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				msg := `{"error":"invalid token"}`
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = `{"error":"token expired"}`
				}
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				http.Error(w, `{"error":"token has no subject"}`, http.StatusUnauthorized)
				return
			}

			info := UserInfo{ID: claims.Subject, Login: claims.Subject, DisplayName: claims.Subject}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), info)))
		})
	}
}

// WhoIsClient resolves a tailnet peer address to its owner. *local.Client from tsnet satisfies it.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// TailscaleIdentity identifies callers by their tailnet login.
func TailscaleIdentity(lc WhoIsClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := lc.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil || who == nil || who.UserProfile == nil || who.UserProfile.LoginName == "" {
				http.Error(w, `{"error":"unknown tailnet peer"}`, http.StatusUnauthorized)
				return
			}
			info := UserInfo{
				ID:          who.UserProfile.LoginName,
				Login:       who.UserProfile.LoginName,
				DisplayName: who.UserProfile.DisplayName,
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), info)))
		})
	}
}

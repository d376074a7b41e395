package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const adminAudience = "learnstudio"

type authError struct {
	status  int
	code    string
	message string
}

func (e *authError) Error() string {
	return e.message
}

type adminClaims struct {
	Subject string
	Scopes  map[string]struct{}
	Exp     int64
}

// authorizeAdmin checks an HS256 bearer token for requiredScope. With no
// secret configured the admin surface is open, matching the rest of the API.
func authorizeAdmin(authHeader, secret, requiredScope string, now time.Time) (adminClaims, *authError) {
	if secret == "" {
		return adminClaims{Subject: "anonymous"}, nil
	}
	claims, err := parseBearer(authHeader, secret, now)
	if err != nil {
		return adminClaims{}, err
	}
	if requiredScope != "" {
		if _, ok := claims.Scopes[requiredScope]; !ok {
			return adminClaims{}, &authError{
				status:  http.StatusForbidden,
				code:    "forbidden",
				message: "missing required scope: " + requiredScope,
			}
		}
	}
	return claims, nil
}

type tokenClaims struct {
	Subject  string `json:"sub"`
	Audience string `json:"aud"`
	Exp      any    `json:"exp"`
	Scopes   any    `json:"scopes"`
}

func parseBearer(authHeader, secret string, now time.Time) (adminClaims, *authError) {
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return adminClaims{}, unauthorized("missing or invalid bearer token")
	}
	segments := strings.Split(strings.TrimSpace(token), ".")
	if len(segments) != 3 {
		return adminClaims{}, unauthorized("invalid jwt format")
	}

	var header struct {
		Alg string `json:"alg"`
	}
	if !decodeSegment(segments[0], &header) {
		return adminClaims{}, unauthorized("invalid jwt header")
	}
	if header.Alg != "HS256" {
		return adminClaims{}, unauthorized("unsupported jwt algorithm")
	}
	if !validSignature(segments, secret) {
		return adminClaims{}, unauthorized("jwt signature mismatch")
	}

	var claims tokenClaims
	if !decodeSegment(segments[1], &claims) {
		return adminClaims{}, unauthorized("invalid jwt payload")
	}
	exp, err := parseExp(claims.Exp)
	if err != nil {
		return adminClaims{}, unauthorized("invalid exp claim")
	}
	if !now.Before(time.Unix(exp, 0)) {
		return adminClaims{}, unauthorized("token expired")
	}
	if claims.Audience != adminAudience {
		return adminClaims{}, unauthorized("invalid aud claim")
	}
	scopes := parseScopes(claims.Scopes)
	if len(scopes) == 0 {
		return adminClaims{}, &authError{status: http.StatusForbidden, code: "forbidden", message: "no scopes granted"}
	}
	return adminClaims{Subject: claims.Subject, Scopes: scopes, Exp: exp}, nil
}

func decodeSegment(segment string, dst any) bool {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func validSignature(segments []string, secret string) bool {
	sig, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(segments[0] + "." + segments[1]))
	return hmac.Equal(sig, mac.Sum(nil))
}

func unauthorized(message string) *authError {
	return &authError{status: http.StatusUnauthorized, code: "unauthorized", message: message}
}

func parseScopes(v any) map[string]struct{} {
	out := map[string]struct{}{}
	switch typed := v.(type) {
	case []any:
		for _, item := range typed {
			if scope, ok := item.(string); ok && scope != "" {
				out[scope] = struct{}{}
			}
		}
	case string:
		for _, scope := range strings.Fields(typed) {
			out[scope] = struct{}{}
		}
	}
	return out
}

func parseExp(v any) (int64, error) {
	switch typed := v.(type) {
	case float64:
		return int64(typed), nil
	case json.Number:
		return typed.Int64()
	default:
		return 0, errors.New("unsupported exp type")
	}
}

package myauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MarcGrol/consultcheckout/lib/mycontext"
	"github.com/MarcGrol/consultcheckout/lib/myerrors"
	"github.com/MarcGrol/consultcheckout/lib/myhttp"
	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/lib/mytime"
)

const issuer = "consultcheckout"

type ctxSubjectKey struct{}

// Issuer creates and validates short-lived HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	nower  mytime.Nower
}

func NewIssuer(secret string, ttl time.Duration, nower mytime.Nower) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		nower:  nower,
	}
}

func (i *Issuer) Issue(subject string) (string, error) {
	now := i.nower.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %s", err)
	}
	return signed, nil
}

func (i *Issuer) Validate(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.nower.Now),
		jwt.WithLeeway(30*time.Second),
	)
	token, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("token validation failed")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("subject claim missing")
	}
	return claims.Subject, nil
}

// Authenticator signs every outgoing request with a freshly issued token.
func (i *Issuer) Authenticator(subject string) myhttpclient.Authenticator {
	return func(req *http.Request) {
		token, err := i.Issue(subject)
		if err != nil {
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Middleware rejects requests without a valid bearer token.
func (i *Issuer) Middleware(logger mylog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := mycontext.ContextFromHTTPRequest(r)
			errorWriter := myhttp.NewWriter(logger)

			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				errorWriter.WriteError(c, w, 1, myerrors.NewUnauthorizedError(fmt.Errorf("authorization required")))
				return
			}
			subject, err := i.Validate(tokenString)
			if err != nil {
				errorWriter.WriteError(c, w, 2, myerrors.NewUnauthorizedError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSubjectKey{}, subject)))
		})
	}
}

func SubjectFromContext(c context.Context) (string, bool) {
	subject, ok := c.Value(ctxSubjectKey{}).(string)
	return subject, ok
}

func bearerToken(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}

	return token, true
}

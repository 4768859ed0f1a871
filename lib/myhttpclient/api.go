package myhttpclient

import (
	"context"
	"net/http"
)

type HTTPSender interface {
	Send(c context.Context, method string, url string, body []byte) (int, []byte, error)
}

// Authenticator decorates an outgoing request with credentials.
type Authenticator func(req *http.Request)

func BearerToken(token string) Authenticator {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func BasicAuth(username, password string) Authenticator {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

func New(auth Authenticator) HTTPSender {
	return newJSONHTTPClient(auth)
}

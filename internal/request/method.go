package request

import (
	"net/http"
	"strings"
)

// Method is an HTTP method understood by the pipeline.
type Method string

const (
	GET    Method = http.MethodGet
	POST   Method = http.MethodPost
	PUT    Method = http.MethodPut
	DELETE Method = http.MethodDelete
	PATCH  Method = http.MethodPatch
)

// CarriesBody reports whether a request body is sent for m. Bodies passed
// with other methods are dropped.
func (m Method) CarriesBody() bool {
	switch m {
	case POST, PUT, PATCH:
		return true
	}
	return false
}

// ParseMethod accepts a method name in any case.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(s))
	switch m {
	case GET, POST, PUT, DELETE, PATCH:
		return m, true
	}
	return "", false
}

// JSONHeaders returns the default headers for JSON APIs.
func JSONHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

// FormHeaders returns headers for url-encoded form posts.
func FormHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return h
}

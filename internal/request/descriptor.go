// Package request describes logical API endpoints and the token policy that
// applies to them.
package request

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/basecamp/netkit/internal/hostutil"
)

// DefaultTokenKey namespaces tokens when a descriptor sets no key.
const DefaultTokenKey = "default"

// Descriptor describes an endpoint. The URI is composed as
// scheme://environment+host+path; Environment is a host prefix such as
// "staging." and is usually empty.
type Descriptor struct {
	Scheme      string
	Host        string
	Environment string
	Path        string
	API         string

	// AccessTokenKey namespaces the tokens used for this endpoint.
	AccessTokenKey string

	RequiresAccessToken bool
	TokenIsExpired      bool

	// TokenHeader is the header the access token is written to. Empty means
	// "Authorization: Bearer <token>"; any other name receives the raw token.
	TokenHeader string
}

// TokenKey returns AccessTokenKey, or DefaultTokenKey when unset.
func (d Descriptor) TokenKey() string {
	if d.AccessTokenKey == "" {
		return DefaultTokenKey
	}
	return d.AccessTokenKey
}

func (d Descriptor) scheme() string {
	if d.Scheme == "" {
		return "https"
	}
	return d.Scheme
}

// BaseURI returns scheme://environment+host.
func (d Descriptor) BaseURI() string {
	return d.scheme() + "://" + d.Environment + d.Host
}

// URI returns scheme://environment+host+path.
func (d Descriptor) URI() string {
	return d.BaseURI() + d.Path
}

// URL builds the full request URL, appending escaped path segments and the
// query. It fails when the composed URI does not parse or has no host.
func (d Descriptor) URL(segments []string, query url.Values) (*url.URL, error) {
	if d.Host == "" {
		return nil, fmt.Errorf("descriptor has no host")
	}
	u, err := url.Parse(d.URI())
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid uri %q", d.URI())
	}
	if len(segments) > 0 {
		u = u.JoinPath(segments...)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// AuthHeader returns the header name and value carrying token.
func (d Descriptor) AuthHeader(token string) (string, string) {
	if d.TokenHeader == "" {
		return "Authorization", "Bearer " + token
	}
	return d.TokenHeader, token
}

// Parse builds a descriptor from a URL. Bare hosts such as "api.example.com"
// get an https scheme, and localhost gets http.
func Parse(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = hostutil.Normalize(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, err
	}
	if u.Host == "" {
		return Descriptor{}, fmt.Errorf("url %q has no host", raw)
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return Descriptor{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   path,
	}, nil
}

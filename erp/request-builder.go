package erp

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/siphon-data/siphon/credentials"
	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/helper"
)

// BuiltRequest is a fully-specified HTTP request template. The extractor
// clones it per page, so the template itself is never mutated.
type BuiltRequest struct {
	Method  string
	URL     *url.URL
	Headers http.Header
}

// Clone copies the request template, including its query values.
func (r *BuiltRequest) Clone() *BuiltRequest {
	u := *r.URL
	headers := make(http.Header, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = append([]string(nil), v...)
	}
	return &BuiltRequest{Method: r.Method, URL: &u, Headers: headers}
}

// RequestBuilder accumulates the parts of an extraction HTTP request and
// validates them all at Build time, never producing a partial request.
type RequestBuilder struct {
	baseUrl  string
	path     string
	method   string
	query    url.Values
	headers  http.Header
	hasCreds bool
}

// NewRequestBuilder creates an empty builder.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{query: url.Values{}, headers: http.Header{}}
}

// WithEndpoint sets the base URL and resource path.
func (b *RequestBuilder) WithEndpoint(baseUrl string, path string) *RequestBuilder {
	b.baseUrl = baseUrl
	b.path = path
	return b
}

// WithMethod sets the HTTP method.
func (b *RequestBuilder) WithMethod(method string) *RequestBuilder {
	b.method = strings.ToUpper(method)
	return b
}

// WithQueryParam adds one query string parameter.
func (b *RequestBuilder) WithQueryParam(key, value string) *RequestBuilder {
	b.query.Set(key, value)
	return b
}

// WithHeader adds one header.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers.Set(key, value)
	return b
}

// WithCredentials applies authentication from the credential bundle:
// "apiKey" becomes a bearer token, "headerName"/"headerValue" a custom
// header, "username"/"password" basic auth.
func (b *RequestBuilder) WithCredentials(creds credentials.Credentials) *RequestBuilder {
	if apiKey, ok := creds.Value("apiKey"); ok {
		b.headers.Set("Authorization", "Bearer "+apiKey)
		b.hasCreds = true
		return b
	}
	if name, ok := creds.Value("headerName"); ok {
		if value, ok2 := creds.Value("headerValue"); ok2 {
			b.headers.Set(name, value)
			b.hasCreds = true
			return b
		}
	}
	if user, ok := creds.Value("username"); ok {
		if pass, ok2 := creds.Value("password"); ok2 {
			req := http.Request{Header: b.headers}
			req.SetBasicAuth(user, pass)
			b.hasCreds = true
			return b
		}
	}
	return b
}

// Build validates all required parts and returns the request template.
func (b *RequestBuilder) Build() (*BuiltRequest, error) {
	missing := make([]string, 0)
	if b.baseUrl == "" {
		missing = append(missing, "endpoint base url")
	}
	if b.method == "" {
		missing = append(missing, "method")
	}
	if !b.hasCreds {
		missing = append(missing, "authentication")
	}
	if len(missing) > 0 {
		return nil, errkind.Newf(errkind.KindConfiguration, "incomplete request: missing %v", helper.StringsToCsv(missing))
	}
	full := strings.TrimRight(b.baseUrl, "/")
	if b.path != "" {
		full = full + "/" + strings.TrimLeft(b.path, "/")
	}
	u, err := url.Parse(full)
	if err != nil {
		return nil, errkind.Wrapf(errkind.KindConfiguration, err, "parsing endpoint %q", full)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errkind.Newf(errkind.KindConfiguration, "endpoint %q is not an absolute url", full)
	}
	u.RawQuery = b.query.Encode()
	headers := make(http.Header, len(b.headers))
	for k, v := range b.headers {
		headers[k] = append([]string(nil), v...)
	}
	if headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}
	return &BuiltRequest{Method: b.method, URL: u, Headers: headers}, nil
}

// String renders the request without leaking auth header values.
func (r *BuiltRequest) String() string {
	return fmt.Sprintf("%v %v", r.Method, r.URL.String())
}

package remote

import (
	"context"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

const (
	// ContentTypeJSON is sent on claim fetches
	ContentTypeJSON = "application/json"

	// ContentTypeForm is sent on token exchanges
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Param is one form field. Form fields keep their order on the wire.
type Param struct {
	Key   string
	Value string
}

// RequestSpec fully describes one outbound call. It is built per resolution
// and discarded afterwards.
type RequestSpec struct {
	// BaseURL is the configured endpoint; query parameters are added to it
	BaseURL string

	// ContentType is set as the Content-Type header before Headers are applied
	ContentType string

	// QueryParams are appended to BaseURL
	QueryParams map[string]string

	// BareQueryParams are appended as a key without "=value"
	BareQueryParams []string

	// Headers are applied after ContentType; a later header wins on collision
	Headers map[string]string

	// Form, when non-nil, makes this a POST with a form-encoded body.
	// A nil Form means GET.
	Form []Param
}

// Method is POST when a form body is present, GET otherwise
func (s *RequestSpec) Method() string {
	if s.Form != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// URL returns BaseURL with QueryParams and BareQueryParams applied.
// Pairs already in BaseURL are kept verbatim unless a parameter of the same
// name replaces them; added parameters follow, sorted by name.
// Returns a KindInvalidURL error unless BaseURL is an absolute http(s) URL.
func (s *RequestSpec) URL() (*url.URL, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, newError(KindInvalidURL, s.BaseURL, "wrong uri syntax", err)
	}
	if u.Host == "" || (!strings.EqualFold(u.Scheme, "http") && !strings.EqualFold(u.Scheme, "https")) {
		return nil, newError(KindInvalidURL, s.BaseURL, "wrong uri syntax", nil)
	}

	if len(s.QueryParams) == 0 && len(s.BareQueryParams) == 0 {
		return u, nil
	}

	added := make(map[string]string, len(s.QueryParams)+len(s.BareQueryParams))
	bare := make(map[string]bool, len(s.BareQueryParams))
	for k, v := range s.QueryParams {
		added[k] = v
	}
	for _, k := range s.BareQueryParams {
		added[k] = ""
		bare[k] = true
	}

	var pairs []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if _, replaced := added[key]; !replaced {
			pairs = append(pairs, pair)
		}
	}

	for _, k := range slices.Sorted(maps.Keys(added)) {
		if bare[k] {
			pairs = append(pairs, url.QueryEscape(k))
			continue
		}
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(added[k]))
	}
	u.RawQuery = strings.Join(pairs, "&")
	return u, nil
}

// NewRequest builds the *http.Request for s
func (s *RequestSpec) NewRequest(ctx context.Context) (*http.Request, error) {
	u, err := s.URL()
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if s.Form != nil {
		body = strings.NewReader(EncodeForm(s.Form))
	}

	req, err := http.NewRequestWithContext(ctx, s.Method(), u.String(), body)
	if err != nil {
		return nil, newError(KindInvalidURL, s.BaseURL, "wrong uri syntax", err)
	}

	req.Header.Set("Accept", ContentTypeJSON)
	if s.ContentType != "" {
		req.Header.Set("Content-Type", s.ContentType)
	}
	for name, value := range s.Headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

// EncodeForm percent-encodes each key and value (UTF-8) and joins the pairs
// with '&' in order, without a trailing separator
func EncodeForm(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

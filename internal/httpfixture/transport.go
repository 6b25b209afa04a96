package httpfixture

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/project-kessel/remoteclaim/internal/clock"
)

// Transport implements http.RoundTripper using a FixtureProvider
type Transport struct {
	provider FixtureProvider
	fallback http.RoundTripper
	strict   bool
	clock    clock.Clock
	recorder *Recorder
}

// TransportConfig configures the fixture transport
type TransportConfig struct {
	Provider FixtureProvider

	// Fallback serves requests the provider has no fixture for
	Fallback http.RoundTripper

	// Strict fails requests without a fixture even when Fallback is set
	Strict bool

	// Clock applies fixture delays (defaults to the system clock)
	Clock clock.Clock

	// Recorder, when set, records every request before it is answered
	Recorder *Recorder
}

// NewTransport creates a new fixture transport
func NewTransport(config TransportConfig) *Transport {
	clk := config.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Transport{
		provider: config.Provider,
		fallback: config.Fallback,
		strict:   config.Strict,
		clock:    clk,
		recorder: config.Recorder,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.recorder != nil {
		t.recorder.record(req)
	}

	var fixture *Fixture
	if t.provider != nil {
		fixture = t.provider.GetFixture(req)
	}

	if fixture != nil {
		if fixture.Delay != nil {
			t.clock.Sleep(*fixture.Delay)
		}
		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		return newResponse(fixture, req), nil
	}

	if t.strict {
		return nil, fmt.Errorf("no fixture provided for request: %s %s", req.Method, req.URL)
	}
	if t.fallback != nil {
		return t.fallback.RoundTrip(req)
	}
	return nil, fmt.Errorf("no fixture provided and no fallback configured")
}

func newResponse(fixture *Fixture, req *http.Request) *http.Response {
	resp := &http.Response{
		Status:        fmt.Sprintf("%d %s", fixture.StatusCode, http.StatusText(fixture.StatusCode)),
		StatusCode:    fixture.StatusCode,
		Header:        make(http.Header),
		Body:          io.NopCloser(strings.NewReader(fixture.Body)),
		ContentLength: int64(len(fixture.Body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
	for key, value := range fixture.Headers {
		resp.Header.Set(key, value)
	}
	return resp
}

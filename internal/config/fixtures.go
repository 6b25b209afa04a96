package config

import (
	"fmt"

	"github.com/project-kessel/remoteclaim/internal/httpfixture"
)

// BuildHTTPFixtureProvider creates a composite HTTP fixture provider from fixture configurations
// Returns nil if no fixtures are configured (normal production mode)
func BuildHTTPFixtureProvider(fixtures []FixtureConfig) (httpfixture.FixtureProvider, error) {
	if len(fixtures) == 0 {
		return nil, nil
	}

	rules := make([]httpfixture.HTTPFixtureRule, 0, len(fixtures))
	for i, f := range fixtures {
		if f.Type != "http_rule" {
			return nil, fmt.Errorf("fixture %d: unknown fixture type: %s (supported: http_rule)", i, f.Type)
		}
		rule, err := httpRule(f)
		if err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		rules = append(rules, rule)
	}

	return httpfixture.NewCompositeFixtureProvider(httpfixture.NewRuleBasedProvider(rules)), nil
}

func httpRule(f FixtureConfig) (httpfixture.HTTPFixtureRule, error) {
	if f.Request.URL == "" {
		return httpfixture.HTTPFixtureRule{}, fmt.Errorf("http_rule fixture requires request.url")
	}

	status := f.Response.StatusCode
	if status == 0 {
		status = 200
	}

	rule := httpfixture.HTTPFixtureRule{
		Request: httpfixture.FixtureRequest{
			Method:  f.Request.Method,
			URL:     f.Request.URL,
			URLType: f.Request.URLType,
			Headers: f.Request.Headers,
			Body:    f.Request.Body,
		},
		Response: httpfixture.Fixture{
			StatusCode: status,
			Headers:    f.Response.Headers,
			Body:       f.Response.Body,
		},
	}

	if f.Response.Delay != "" {
		delay, err := parseDuration("delay", f.Response.Delay, 0)
		if err != nil {
			return httpfixture.HTTPFixtureRule{}, err
		}
		rule.Response.Delay = &delay
	}

	return rule, nil
}

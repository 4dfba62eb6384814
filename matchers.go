package oauthfilter

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// PathMatcherConfig selects requests by path. Exactly one of the fields must
// be set. Regex patterns are anchored to the full path.
type PathMatcherConfig struct {
	Exact  string `yaml:"exact" json:"exact"`
	Prefix string `yaml:"prefix" json:"prefix"`
	Regex  string `yaml:"regex" json:"regex"`
}

// PathMatcher is a compiled path predicate.
type PathMatcher struct {
	exact  string
	prefix string
	regex  *regexp.Regexp
}

// newPathMatcher compiles a path matcher config. An empty config or an
// invalid regex is a construction failure.
func newPathMatcher(config PathMatcherConfig) (*PathMatcher, error) {
	set := 0
	if config.Exact != "" {
		set++
	}
	if config.Prefix != "" {
		set++
	}
	if config.Regex != "" {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("path matcher requires exactly one of exact, prefix or regex")
	}

	m := &PathMatcher{exact: config.Exact, prefix: config.Prefix}
	if config.Regex != "" {
		re, err := regexp.Compile("^(?:" + config.Regex + ")$")
		if err != nil {
			return nil, fmt.Errorf("invalid path matcher regex %q: %w", config.Regex, err)
		}
		m.regex = re
	}
	return m, nil
}

// Match evaluates the predicate against a request path. The path may carry a
// query string; exact and regex matching strip it first, prefix matching does
// not need to.
func (m *PathMatcher) Match(path string) bool {
	switch {
	case m.regex != nil:
		return m.regex.MatchString(stripQuery(path))
	case m.prefix != "":
		return strings.HasPrefix(path, m.prefix)
	default:
		return stripQuery(path) == m.exact
	}
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// HeaderMatcherConfig selects requests by a single header. With only Name
// set, presence of the header is enough. Otherwise exactly one of Exact,
// Prefix, Contains or Regex narrows the match on the header value.
type HeaderMatcherConfig struct {
	Name     string `yaml:"name" json:"name"`
	Exact    string `yaml:"exact" json:"exact"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	Contains string `yaml:"contains" json:"contains"`
	Regex    string `yaml:"regex" json:"regex"`
}

// HeaderMatcher is a compiled header predicate.
type HeaderMatcher struct {
	name     string
	exact    string
	prefix   string
	contains string
	regex    *regexp.Regexp
}

func newHeaderMatcher(config HeaderMatcherConfig) (*HeaderMatcher, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("header matcher requires a name")
	}
	set := 0
	for _, v := range []string{config.Exact, config.Prefix, config.Contains, config.Regex} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("header matcher %q: at most one of exact, prefix, contains or regex may be set", config.Name)
	}

	m := &HeaderMatcher{
		name:     config.Name,
		exact:    config.Exact,
		prefix:   config.Prefix,
		contains: config.Contains,
	}
	if config.Regex != "" {
		re, err := regexp.Compile("^(?:" + config.Regex + ")$")
		if err != nil {
			return nil, fmt.Errorf("invalid header matcher regex %q: %w", config.Regex, err)
		}
		m.regex = re
	}
	return m, nil
}

// Matches evaluates the predicate against request headers.
func (m *HeaderMatcher) Matches(headers http.Header) bool {
	values := headers.Values(m.name)
	if len(values) == 0 {
		return false
	}
	for _, value := range values {
		switch {
		case m.regex != nil:
			if m.regex.MatchString(value) {
				return true
			}
		case m.exact != "":
			if value == m.exact {
				return true
			}
		case m.prefix != "":
			if strings.HasPrefix(value, m.prefix) {
				return true
			}
		case m.contains != "":
			if strings.Contains(value, m.contains) {
				return true
			}
		default:
			// presence match
			return true
		}
	}
	return false
}

// newHeaderMatchers compiles a matcher list. Lists carry any-of semantics at
// the call sites.
func newHeaderMatchers(configs []HeaderMatcherConfig) ([]*HeaderMatcher, error) {
	matchers := make([]*HeaderMatcher, 0, len(configs))
	for _, config := range configs {
		m, err := newHeaderMatcher(config)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func anyHeaderMatches(matchers []*HeaderMatcher, headers http.Header) bool {
	for _, m := range matchers {
		if m.Matches(headers) {
			return true
		}
	}
	return false
}

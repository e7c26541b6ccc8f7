package blocker

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// Trigger is the compiled predicate half of a rule. It is read-only once
// built and safe to share between goroutines.
type Trigger struct {
	urlFilter     *regexp.Regexp
	source        string
	caseSensitive bool

	resourceTypes []models.ResourceType
	// matchTypes is resourceTypes plus svg-document when image is declared.
	matchTypes map[models.ResourceType]struct{}

	ifDomain     []string
	unlessDomain []string
	loadType     []string
	ifTopURL     []string
	unlessTopURL []string
}

// NewTrigger validates def and compiles its url filter
func NewTrigger(def models.TriggerDefinition) (*Trigger, error) {
	if len(def.IfDomain) > 0 && len(def.UnlessDomain) > 0 {
		return nil, ErrConflictingDomains
	}
	if len(def.IfTopURL) > 0 && len(def.UnlessTopURL) > 0 {
		return nil, ErrConflictingTopURLs
	}
	if len(def.LoadType) > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyLoadTypes, len(def.LoadType))
	}
	for _, lt := range def.LoadType {
		if lt != models.LoadFirstParty && lt != models.LoadThirdParty {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLoadType, lt)
		}
	}

	t := &Trigger{
		source:        def.URLFilter,
		caseSensitive: def.URLFilterIsCaseSensitive,
		resourceTypes: slices.Clone(def.ResourceType),
		matchTypes:    make(map[models.ResourceType]struct{}, len(def.ResourceType)+1),
		ifDomain:      slices.Clone(def.IfDomain),
		unlessDomain:  slices.Clone(def.UnlessDomain),
		loadType:      slices.Clone(def.LoadType),
		ifTopURL:      slices.Clone(def.IfTopURL),
		unlessTopURL:  slices.Clone(def.UnlessTopURL),
	}

	for _, rt := range def.ResourceType {
		if !rt.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, rt)
		}
		t.matchTypes[rt] = struct{}{}
	}
	// SVG responses are served as images.
	if _, ok := t.matchTypes[models.ResourceImage]; ok {
		t.matchTypes[models.ResourceSVG] = struct{}{}
	}

	if def.URLFilter != "" {
		expr := "^(?:" + def.URLFilter + ")$"
		if !def.URLFilterIsCaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidURLFilter, def.URLFilter, err)
		}
		t.urlFilter = re
	}

	return t, nil
}

// Definition converts the trigger back to its payload form. Derived
// resource types are not included.
func (t *Trigger) Definition() models.TriggerDefinition {
	return models.TriggerDefinition{
		URLFilter:                t.source,
		URLFilterIsCaseSensitive: t.caseSensitive,
		ResourceType:             slices.Clone(t.resourceTypes),
		IfDomain:                 slices.Clone(t.ifDomain),
		UnlessDomain:             slices.Clone(t.unlessDomain),
		LoadType:                 slices.Clone(t.loadType),
		IfTopURL:                 slices.Clone(t.ifTopURL),
		UnlessTopURL:             slices.Clone(t.unlessTopURL),
	}
}

// MatchesURL full-matches the url filter against rawURL. A trigger without
// a filter never matches.
func (t *Trigger) MatchesURL(rawURL string) bool {
	if t.urlFilter == nil {
		return false
	}
	return t.urlFilter.MatchString(rawURL)
}

// MatchesResourceType reports whether rt passes the resource-type filter
func (t *Trigger) MatchesResourceType(rt models.ResourceType) bool {
	if len(t.matchTypes) == 0 {
		return true
	}
	_, ok := t.matchTypes[rt]
	return ok
}

// MatchesDomain applies the if-domain / unless-domain gate to host
func (t *Trigger) MatchesDomain(host string) bool {
	if len(t.ifDomain) > 0 && !anyDomainMatches(t.ifDomain, host) {
		return false
	}
	if len(t.unlessDomain) > 0 && anyDomainMatches(t.unlessDomain, host) {
		return false
	}
	return true
}

// NeedsTopURL reports whether evaluating the trigger requires the top URL
func (t *Trigger) NeedsTopURL() bool {
	return len(t.loadType) > 0 || len(t.ifTopURL) > 0 || len(t.unlessTopURL) > 0
}

// MatchesTopURL applies the load-type and top-URL gates. origin is the
// parsed request URL, topURL the page currently loaded in the top frame.
// An empty topURL leaves the gates open.
func (t *Trigger) MatchesTopURL(origin endpoint, topURL string) (bool, error) {
	if topURL == "" {
		return true, nil
	}

	if len(t.loadType) > 0 {
		top, err := parseEndpoint(topURL)
		if err != nil {
			return false, err
		}
		if top.host != "" {
			if slices.Contains(t.loadType, models.LoadFirstParty) && !top.sameOrigin(origin) {
				return false, nil
			}
			// Third-party only compares hosts, kept for parity with
			// existing rule sets.
			if slices.Contains(t.loadType, models.LoadThirdParty) && top.host == origin.host {
				return false, nil
			}
		}
	}

	if len(t.ifTopURL) > 0 && !anyPrefix(t.ifTopURL, topURL) {
		return false, nil
	}
	if len(t.unlessTopURL) > 0 && anyPrefix(t.unlessTopURL, topURL) {
		return false, nil
	}
	return true, nil
}

func anyDomainMatches(domains []string, host string) bool {
	for _, d := range domains {
		if domainMatches(d, host) {
			return true
		}
	}
	return false
}

// domainMatches compares host with a domain entry; a leading * turns the
// entry into a suffix match.
func domainMatches(domain, host string) bool {
	if strings.HasPrefix(domain, "*") {
		return strings.HasSuffix(host, strings.ReplaceAll(domain, "*", ""))
	}
	return domain == host
}

func anyPrefix(prefixes []string, s string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

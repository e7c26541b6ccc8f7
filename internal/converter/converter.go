package converter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// Converter converts parsed filters to rule definitions
type Converter struct {
	stats Stats
}

// Stats tracks conversion statistics
type Stats struct {
	Converted   int
	Skipped     int
	SkipReasons map[string]int
}

// Skip reason constants
const (
	SkipInvalidRegex       = "invalid-regex"
	SkipException          = "exception (@@)"
	SkipCosmeticException  = "cosmetic-exception (#@#)"
	SkipEmptySelector      = "empty-selector"
	SkipInvalidSelector    = "invalid-selector"
	SkipConflictingDomains = "conflicting-domains"
)

// New creates a new converter
func New() *Converter {
	return &Converter{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

func (c *Converter) skip(reason string) {
	c.stats.Skipped++
	c.stats.SkipReasons[reason]++
}

// Stats returns conversion statistics
func (c *Converter) Stats() Stats {
	return c.stats
}

// Convert transforms parsed filters into rule definitions. Filters the
// engine cannot express are counted in Stats and dropped.
func (c *Converter) Convert(filters []models.Filter) []models.RuleDefinition {
	var rules []models.RuleDefinition

	for _, f := range filters {
		var rule *models.RuleDefinition
		var skipReason string

		switch f.Type {
		case models.FilterTypeNetwork:
			rule, skipReason = c.convertNetwork(f)
		case models.FilterTypeException:
			skipReason = SkipException
		case models.FilterTypeCosmetic:
			rule, skipReason = c.convertCosmetic(f)
		case models.FilterTypeCosmeticException:
			skipReason = SkipCosmeticException
		default:
			continue
		}

		if rule == nil {
			c.skip(skipReason)
			continue
		}

		c.stats.Converted++
		rules = append(rules, *rule)
	}

	return rules
}

func (c *Converter) convertNetwork(f models.Filter) (*models.RuleDefinition, string) {
	regex := PatternToRegex(f.Pattern)
	if !ValidateRegex(regex) {
		return nil, SkipInvalidRegex
	}
	if len(f.Options.Domains) > 0 && len(f.Options.ExcludeDomains) > 0 {
		return nil, SkipConflictingDomains
	}

	rule := &models.RuleDefinition{
		Trigger: models.TriggerDefinition{
			URLFilter:                regex,
			URLFilterIsCaseSensitive: f.Options.MatchCase,
			ResourceType:             f.Options.ResourceTypes,
			IfDomain:                 normalizeDomains(f.Options.Domains),
			UnlessDomain:             normalizeDomains(f.Options.ExcludeDomains),
		},
		Action: models.ActionDefinition{Type: models.ActionBlock},
	}

	if f.Options.ThirdParty != nil {
		if *f.Options.ThirdParty {
			rule.Trigger.LoadType = []string{models.LoadThirdParty}
		} else {
			rule.Trigger.LoadType = []string{models.LoadFirstParty}
		}
	}

	return rule, ""
}

func (c *Converter) convertCosmetic(f models.Filter) (*models.RuleDefinition, string) {
	if f.Selector == "" {
		return nil, SkipEmptySelector
	}
	if _, err := cascadia.ParseGroup(f.Selector); err != nil {
		return nil, SkipInvalidSelector
	}

	var include, exclude []string
	for _, d := range f.Domains {
		if strings.HasPrefix(d, "~") {
			exclude = append(exclude, d[1:])
		} else {
			include = append(include, d)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, SkipConflictingDomains
	}

	return &models.RuleDefinition{
		Trigger: models.TriggerDefinition{
			URLFilter:    ".*",
			IfDomain:     normalizeDomains(include),
			UnlessDomain: normalizeDomains(exclude),
		},
		Action: models.ActionDefinition{
			Type:     models.ActionCSSDisplayNone,
			Selector: f.Selector,
		},
	}, ""
}

// normalizeDomains adds the * prefix so that subdomains match too
func normalizeDomains(domains []string) []string {
	if len(domains) == 0 {
		return nil
	}
	result := make([]string, len(domains))
	for i, d := range domains {
		result[i] = normalizeDomain(d)
	}
	return result
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, ".")
	if !strings.HasPrefix(d, "*") {
		return "*" + d
	}
	return d
}

// Deduplicate removes rules with identical trigger and action, keeping the
// first occurrence.
func Deduplicate(rules []models.RuleDefinition) []models.RuleDefinition {
	seen := make(map[string]bool)
	result := make([]models.RuleDefinition, 0, len(rules))

	for _, r := range rules {
		key := ruleKey(r)
		if !seen[key] {
			seen[key] = true
			result = append(result, r)
		}
	}

	return result
}

func ruleKey(r models.RuleDefinition) string {
	t := r.Trigger
	return fmt.Sprintf("%s|%t|%s|%s|%s|%s|%s|%s|%s|%s",
		t.URLFilter,
		t.URLFilterIsCaseSensitive,
		joinSorted(resourceStrings(t.ResourceType)),
		joinSorted(t.IfDomain),
		joinSorted(t.UnlessDomain),
		joinSorted(t.LoadType),
		joinSorted(t.IfTopURL),
		joinSorted(t.UnlessTopURL),
		r.Action.Type,
		r.Action.Selector,
	)
}

func resourceStrings(types []models.ResourceType) []string {
	out := make([]string, len(types))
	for i, rt := range types {
		out[i] = string(rt)
	}
	return out
}

func joinSorted(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

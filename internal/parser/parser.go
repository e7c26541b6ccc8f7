package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// Parser parses ABP/uBlock filter lists
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Network     int
	Exception   int
	Cosmetic    int
	Comments    int
	Unsupported int
	SkipReasons map[string]int
}

// SkipReason constants
const (
	SkipScriptlet      = "scriptlet (##+js)"
	SkipHTMLFilter     = "html-filter (##^)"
	SkipProcedural     = "procedural (:has, :xpath, etc)"
	SkipUnsupportedOpt = "unsupported-option (redirect, csp, etc)"
	SkipUnknownType    = "unknown-resource-type"
)

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

func (p *Parser) skip(reason string) models.Filter {
	p.stats.SkipReasons[reason]++
	return models.Filter{Type: models.FilterTypeUnsupported}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads filter content and returns parsed filters. Comments and
// unsupported lines are counted and dropped.
func (p *Parser) Parse(r io.Reader) ([]models.Filter, error) {
	var filters []models.Filter
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		filter := p.parseLine(line)
		p.stats.Total++

		switch filter.Type {
		case models.FilterTypeComment:
			p.stats.Comments++
			continue
		case models.FilterTypeUnsupported:
			p.stats.Unsupported++
			continue
		case models.FilterTypeNetwork:
			p.stats.Network++
		case models.FilterTypeException:
			p.stats.Exception++
		case models.FilterTypeCosmetic, models.FilterTypeCosmeticException:
			p.stats.Cosmetic++
		}

		filters = append(filters, filter)
	}

	return filters, scanner.Err()
}

func (p *Parser) parseLine(line string) models.Filter {
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
		return models.Filter{Type: models.FilterTypeComment, Raw: line}
	}

	if strings.Contains(line, "##+js(") || strings.Contains(line, "#@#+js(") {
		return p.skip(SkipScriptlet)
	}
	if strings.Contains(line, "##^") || strings.Contains(line, "#@#^") {
		return p.skip(SkipHTMLFilter)
	}

	if idx := strings.Index(line, "#@#"); idx != -1 {
		return p.parseCosmetic(line, idx, true)
	}
	if idx := strings.Index(line, "##"); idx != -1 {
		return p.parseCosmetic(line, idx, false)
	}

	if strings.HasPrefix(line, "@@") {
		return p.parseNetwork(line[2:], true)
	}
	return p.parseNetwork(line, false)
}

// procedural operators need a script runtime, plain selectors do not
var procedural = []string{
	":has(", ":has-text(", ":xpath(", ":matches-css(",
	":matches-attr(", ":min-text-length(", ":upward(",
	":remove(", ":style(", ":matches-path(", ":watch-attr(",
}

func containsProcedural(selector string) bool {
	for _, op := range procedural {
		if strings.Contains(selector, op) {
			return true
		}
	}
	return false
}

func (p *Parser) parseCosmetic(line string, sepIdx int, isException bool) models.Filter {
	separator := "##"
	filterType := models.FilterTypeCosmetic
	if isException {
		separator = "#@#"
		filterType = models.FilterTypeCosmeticException
	}

	selector := strings.TrimSpace(line[sepIdx+len(separator):])
	if containsProcedural(selector) {
		return p.skip(SkipProcedural)
	}

	return models.Filter{
		Type:     filterType,
		Raw:      line,
		Selector: selector,
		Domains:  parseDomainList(line[:sepIdx], ","),
	}
}

func (p *Parser) parseNetwork(line string, isException bool) models.Filter {
	filterType := models.FilterTypeNetwork
	if isException {
		filterType = models.FilterTypeException
	}

	pattern := line
	var options models.FilterOptions

	if idx := strings.LastIndex(line, "$"); idx != -1 && (idx == 0 || line[idx-1] != '\\') {
		optPart := line[idx+1:]
		// a trailing "$/" belongs to a regex literal
		if !strings.HasPrefix(optPart, "/") {
			if hasUnsupportedOptions(optPart) {
				return p.skip(SkipUnsupportedOpt)
			}
			var ok bool
			options, ok = parseOptions(optPart)
			if !ok {
				return p.skip(SkipUnknownType)
			}
			pattern = line[:idx]
		}
	}

	return models.Filter{
		Type:    filterType,
		Raw:     line,
		Pattern: pattern,
		Options: options,
	}
}

func parseDomainList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	domains := make([]string, 0, len(parts))
	for _, d := range parts {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// parseOptions parses network filter options. ok is false when a resource
// type option names nothing this engine can classify.
func parseOptions(s string) (opts models.FilterOptions, ok bool) {
	var include, exclude []models.ResourceType

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		switch {
		case part == "third-party" || part == "3p":
			t := true
			opts.ThirdParty = &t
		case part == "~third-party" || part == "~3p" || part == "first-party" || part == "1p":
			f := false
			opts.ThirdParty = &f
		case part == "match-case":
			opts.MatchCase = true
		case part == "important":
			// every rule is evaluated in order, there is nothing to promote
		case strings.HasPrefix(part, "domain="):
			opts.Domains, opts.ExcludeDomains = parseDomainOption(part[len("domain="):])
		default:
			negated := strings.HasPrefix(part, "~")
			types := mapResourceType(strings.TrimPrefix(part, "~"))
			if types == nil {
				continue
			}
			if negated {
				exclude = append(exclude, types...)
			} else {
				include = append(include, types...)
			}
		}
	}

	if len(include) == 0 && len(exclude) > 0 {
		include = models.ResourceTypes
	}
	opts.ResourceTypes = subtract(include, exclude)
	if len(include) > 0 && len(opts.ResourceTypes) == 0 {
		return opts, false
	}
	return opts, true
}

// subtract returns the distinct members of include absent from exclude, in
// the order of include.
func subtract(include, exclude []models.ResourceType) []models.ResourceType {
	if len(include) == 0 {
		return nil
	}
	drop := make(map[models.ResourceType]bool, len(exclude))
	for _, rt := range exclude {
		drop[rt] = true
	}
	out := make([]models.ResourceType, 0, len(include))
	for _, rt := range include {
		if !drop[rt] {
			drop[rt] = true
			out = append(out, rt)
		}
	}
	return out
}

// parseDomainOption parses domain=example.com|~excluded.com
func parseDomainOption(s string) (include, exclude []string) {
	for _, d := range parseDomainList(s, "|") {
		if strings.HasPrefix(d, "~") {
			exclude = append(exclude, d[1:])
		} else {
			include = append(include, d)
		}
	}
	return
}

// mapResourceType maps ABP resource types to engine types. Types the
// classifier cannot tell apart collapse to raw.
func mapResourceType(s string) []models.ResourceType {
	switch s {
	case "script":
		return []models.ResourceType{models.ResourceScript}
	case "image", "img":
		return []models.ResourceType{models.ResourceImage}
	case "stylesheet", "css":
		return []models.ResourceType{models.ResourceStyleSheet}
	case "font":
		return []models.ResourceType{models.ResourceFont}
	case "media":
		return []models.ResourceType{models.ResourceMedia}
	case "subdocument", "frame", "document", "doc":
		return []models.ResourceType{models.ResourceDocument}
	case "popup":
		return []models.ResourceType{models.ResourcePopup}
	case "xmlhttprequest", "xhr", "object", "object-subrequest",
		"ping", "beacon", "other", "websocket", "webrtc":
		return []models.ResourceType{models.ResourceRaw}
	}
	return nil
}

// hasUnsupportedOptions checks for options that can't be converted
func hasUnsupportedOptions(s string) bool {
	unsupported := []string{
		"redirect=", "redirect-rule=",
		"csp=", "removeparam=", "replace=",
		"header=", "method=", "to=",
		"permissions=", "uritransform=",
		"rewrite=", "generichide", "elemhide",
	}
	for _, u := range unsupported {
		if strings.Contains(s, u) {
			return true
		}
	}
	return false
}

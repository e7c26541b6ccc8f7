package models

// FilterType represents the type of filter parsed
type FilterType int

const (
	FilterTypeComment FilterType = iota
	FilterTypeNetwork
	FilterTypeException
	FilterTypeCosmetic
	FilterTypeCosmeticException
	FilterTypeUnsupported // scriptlets, HTML filters, procedural
)

// Filter is one parsed line of an ABP/uBlock list
type Filter struct {
	Type     FilterType
	Raw      string
	Pattern  string // network filters
	Selector string // cosmetic filters
	Domains  []string
	Options  FilterOptions
}

// FilterOptions contains parsed network filter options
type FilterOptions struct {
	ThirdParty     *bool // nil = any, true = 3p only, false = 1p only
	ResourceTypes  []ResourceType
	Domains        []string
	ExcludeDomains []string
	MatchCase      bool
}

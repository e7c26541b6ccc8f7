package models

// RuleDefinition is one entry of a content blocker payload as sent by the host
type RuleDefinition struct {
	Trigger TriggerDefinition `json:"trigger" jsonschema:"required"`
	Action  ActionDefinition  `json:"action" jsonschema:"required"`
}

// TriggerDefinition defines when a rule should activate
type TriggerDefinition struct {
	URLFilter                string         `json:"url-filter,omitempty" jsonschema:"description=Regular expression matched against the whole request URL"`
	URLFilterIsCaseSensitive bool           `json:"url-filter-is-case-sensitive,omitempty"`
	ResourceType             []ResourceType `json:"resource-type,omitempty" jsonschema:"enum=document,enum=image,enum=style-sheet,enum=script,enum=font,enum=svg-document,enum=media,enum=popup,enum=raw"`
	IfDomain                 []string       `json:"if-domain,omitempty"`
	UnlessDomain             []string       `json:"unless-domain,omitempty"`
	LoadType                 []string       `json:"load-type,omitempty" jsonschema:"enum=first-party,enum=third-party,maxItems=2"`
	IfTopURL                 []string       `json:"if-top-url,omitempty"`
	UnlessTopURL             []string       `json:"unless-top-url,omitempty"`
}

// ActionDefinition defines what to do when a rule triggers
type ActionDefinition struct {
	Type     ActionType `json:"type" jsonschema:"enum=block,enum=css-display-none,enum=make-https"`
	Selector string     `json:"selector,omitempty"` // only for css-display-none
}

// ActionType names an action kind
type ActionType string

// Action type constants
const (
	ActionBlock          ActionType = "block"
	ActionCSSDisplayNone ActionType = "css-display-none"
	ActionMakeHTTPS      ActionType = "make-https"
)

// ResourceType is the coarse classification of a request payload
type ResourceType string

// Resource type constants (WebKit names)
const (
	ResourceDocument   ResourceType = "document"
	ResourceImage      ResourceType = "image"
	ResourceStyleSheet ResourceType = "style-sheet"
	ResourceScript     ResourceType = "script"
	ResourceFont       ResourceType = "font"
	ResourceRaw        ResourceType = "raw"
	ResourceSVG        ResourceType = "svg-document"
	ResourceMedia      ResourceType = "media"
	ResourcePopup      ResourceType = "popup"
)

// ResourceTypes lists every known resource type
var ResourceTypes = []ResourceType{
	ResourceDocument,
	ResourceImage,
	ResourceStyleSheet,
	ResourceScript,
	ResourceFont,
	ResourceSVG,
	ResourceMedia,
	ResourcePopup,
	ResourceRaw,
}

// Valid reports whether r is one of the known resource types
func (r ResourceType) Valid() bool {
	for _, known := range ResourceTypes {
		if r == known {
			return true
		}
	}
	return false
}

// Load type constants
const (
	LoadFirstParty = "first-party"
	LoadThirdParty = "third-party"
)

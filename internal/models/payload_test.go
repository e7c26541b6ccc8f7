package models

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRuleDefinitions(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		data := `[{"trigger":{"url-filter":".*\\.js","resource-type":["script"],"load-type":["third-party"]},"action":{"type":"block"}}]`
		defs, err := DecodeRuleDefinitions([]byte(data), FormatJSON)
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, `.*\.js`, defs[0].Trigger.URLFilter)
		assert.Equal(t, []ResourceType{ResourceScript}, defs[0].Trigger.ResourceType)
		assert.Equal(t, []string{LoadThirdParty}, defs[0].Trigger.LoadType)
		assert.Equal(t, ActionBlock, defs[0].Action.Type)
	})

	t.Run("yaml", func(t *testing.T) {
		data := `
- trigger:
    url-filter: ".*"
    if-domain: ["*example.com"]
  action:
    type: css-display-none
    selector: ".ad, #banner"
`
		defs, err := DecodeRuleDefinitions([]byte(data), FormatYAML)
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, []string{"*example.com"}, defs[0].Trigger.IfDomain)
		assert.Equal(t, ".ad, #banner", defs[0].Action.Selector)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := DecodeRuleDefinitions([]byte(`[{"trigger":{"url_filter":".*"},"action":{"type":"block"}}]`), FormatJSON)
		assert.ErrorContains(t, err, "url_filter")
	})

	t.Run("not a list", func(t *testing.T) {
		_, err := DecodeRuleDefinitions([]byte(`{"trigger":{}}`), FormatJSON)
		assert.Error(t, err)
	})

	t.Run("broken yaml", func(t *testing.T) {
		_, err := DecodeRuleDefinitions([]byte("- trigger: [unclosed"), FormatYAML)
		assert.Error(t, err)
	})
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("rules.yaml"))
	assert.Equal(t, FormatYAML, FormatFromPath("RULES.YML"))
	assert.Equal(t, FormatJSON, FormatFromPath("rules.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("rules"))
}

func TestLoadRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte("- trigger: {url-filter: \".*\"}\n  action: {type: make-https}\n"), 0o644))

	defs, err := LoadRuleFile(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, ActionMakeHTTPS, defs[0].Action.Type)

	_, err = LoadRuleFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeRuleDefinitions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeRuleDefinitions(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())

	buf.Reset()
	defs := []RuleDefinition{{
		Trigger: TriggerDefinition{URLFilter: ".*", UnlessDomain: []string{"*example.com"}},
		Action:  ActionDefinition{Type: ActionBlock},
	}}
	require.NoError(t, EncodeRuleDefinitions(&buf, defs))
	assert.JSONEq(t, `[{"trigger":{"url-filter":".*","unless-domain":["*example.com"]},"action":{"type":"block"}}]`, buf.String())
}

func TestRuleSchema(t *testing.T) {
	schema := RuleSchema()
	require.NotNil(t, schema)

	data, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(data), "url-filter")
	assert.Contains(t, string(data), "css-display-none")
}

func TestResourceTypeValid(t *testing.T) {
	for _, rt := range ResourceTypes {
		assert.True(t, rt.Valid(), rt)
	}
	assert.False(t, ResourceType("websocket").Valid())
	assert.False(t, ResourceType("").Valid())
}

func TestEnabledLists(t *testing.T) {
	cfg := DefaultConfig()
	enabled := cfg.EnabledLists()
	require.NotEmpty(t, enabled)
	for _, l := range enabled {
		assert.True(t, l.Enabled, l.Name)
	}
	assert.Less(t, len(enabled), len(cfg.Lists))
}

package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/aura/pkg/models"
)

func validPattern(name string) models.ContextPattern {
	return models.ContextPattern{
		PatternName:    name,
		AppName:        "Zoom",
		AudioKeywords:  []string{"standup", "blockers"},
		TriggerActions: []string{"take_note"},
		IsActive:       true,
	}
}

func TestLoadMissingFile(t *testing.T) {
	f, err := Load("/nonexistent/path/rules.yaml")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.True(t, f.Empty())
}

func TestLoadValidYAML(t *testing.T) {
	const yamlContent = `
patterns:
  - pattern_name: meeting-notes
    app_name: Zoom
    audio_keywords: ["action item", "follow up"]
    trigger_actions: ["take_note"]
    is_active: true
  - pattern_name: error-help
    window_pattern: "Terminal"
    screen_keywords: ["panic", "fatal error"]
    trigger_actions: ["web_search"]
    is_active: true

app_filters:
  - app_name: 1Password
    is_blacklisted: true
  - app_name: Chrome
    is_whitelisted: true
    window_patterns: ["Gmail", "Calendar"]

audio_filters:
  - source_name: built-in-mic
    is_whitelisted: true
    volume_threshold: 0.2
`
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.False(t, f.Empty())

	require.Len(t, f.Patterns, 2)
	assert.Equal(t, "meeting-notes", f.Patterns[0].PatternName)
	assert.Equal(t, "Zoom", f.Patterns[0].AppName)
	assert.Equal(t, []string{"action item", "follow up"}, f.Patterns[0].AudioKeywords)
	assert.True(t, f.Patterns[0].IsActive)
	assert.Equal(t, "Terminal", f.Patterns[1].WindowPattern)

	require.Len(t, f.AppFilters, 2)
	assert.True(t, f.AppFilters[0].IsBlacklisted)
	assert.Equal(t, []string{"Gmail", "Calendar"}, f.AppFilters[1].WindowPatterns)

	require.Len(t, f.AudioFilters, 1)
	assert.InDelta(t, 0.2, f.AudioFilters[0].VolumeThreshold, 1e-9)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns: [broken"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidatePartitionsBadEntries(t *testing.T) {
	const yamlContent = `
patterns:
  - pattern_name: good
    app_name: Slack
    is_active: true
  - pattern_name: ""
    app_name: Slack

app_filters:
  - app_name: Chrome
    is_whitelisted: true
    is_blacklisted: true
  - app_name: Slack
    is_whitelisted: true

audio_filters:
  - source_name: mic
    volume_threshold: 1.5
`
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	f, err := Load(path)
	require.NoError(t, err)

	valid, rejected := f.Validate()
	assert.Len(t, rejected, 3)

	require.Len(t, valid.Patterns, 1)
	assert.Equal(t, "good", valid.Patterns[0].PatternName)
	require.Len(t, valid.AppFilters, 1)
	assert.Equal(t, "Slack", valid.AppFilters[0].AppName)
	assert.Empty(t, valid.AudioFilters)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	f, err := Load(path)
	require.NoError(t, err)
	require.True(t, f.Empty())

	f.Patterns = append(f.Patterns, validPattern("standup"))
	require.NoError(t, Save(path, f))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Patterns, 1)
	assert.Equal(t, "standup", loaded.Patterns[0].PatternName)
	assert.Equal(t, f.Patterns[0].AudioKeywords, loaded.Patterns[0].AudioKeywords)
}

//go:build fts5

package gorm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/aura/pkg/models"
)

// testRuleStore creates a RuleStore with a temporary database for testing.
func testRuleStore(t *testing.T) (*RuleStore, *Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "gorm_rule_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	cfg := Config{
		Path:     dbPath,
		MaxConns: 4,
		LogLevel: logger.Silent,
	}

	store, err := NewStore(cfg)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("NewStore failed: %v", err)
	}

	ruleStore := NewRuleStore(store)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return ruleStore, store, cleanup
}

func TestRuleStore_SeededAppFilters(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	// Migrations seed password managers as blacklisted
	filters, err := ruleStore.ListAppFilters(ctx)
	require.NoError(t, err)
	require.Len(t, filters, 3)

	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.AppName
		assert.True(t, f.IsBlacklisted, "%s should be blacklisted", f.AppName)
		assert.False(t, f.IsWhitelisted)
	}
	assert.Equal(t, []string{"1Password", "Bitwarden", "KeePassXC"}, names)
}

func TestRuleStore_AppFilterRoundTrip(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	err := ruleStore.UpsertAppFilter(ctx, &models.AppFilter{
		AppName:        "Slack",
		IsWhitelisted:  true,
		WindowPatterns: []string{"#engineering", "DMs"},
	})
	require.NoError(t, err)

	got, err := ruleStore.GetAppFilter(ctx, "Slack")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Slack", got.AppName)
	assert.True(t, got.IsWhitelisted)
	assert.False(t, got.IsBlacklisted)
	assert.Equal(t, []string{"#engineering", "DMs"}, got.WindowPatterns)
}

func TestRuleStore_AppFilterUpsertReplaces(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	err := ruleStore.UpsertAppFilter(ctx, &models.AppFilter{AppName: "Chrome", IsWhitelisted: true})
	require.NoError(t, err)

	// Flip to blacklisted; same name must replace, not duplicate
	err = ruleStore.UpsertAppFilter(ctx, &models.AppFilter{AppName: "Chrome", IsBlacklisted: true})
	require.NoError(t, err)

	got, err := ruleStore.GetAppFilter(ctx, "Chrome")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsWhitelisted)
	assert.True(t, got.IsBlacklisted)

	filters, err := ruleStore.ListAppFilters(ctx)
	require.NoError(t, err)
	assert.Len(t, filters, 4) // 3 seeds + Chrome
}

func TestRuleStore_AppFilterValidation(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	err := ruleStore.UpsertAppFilter(ctx, &models.AppFilter{AppName: ""})
	assert.Error(t, err)

	err = ruleStore.UpsertAppFilter(ctx, &models.AppFilter{
		AppName:       "Chrome",
		IsWhitelisted: true,
		IsBlacklisted: true,
	})
	assert.Error(t, err)
}

func TestRuleStore_GetAppFilter_Missing(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	got, err := ruleStore.GetAppFilter(context.Background(), "NoSuchApp")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleStore_DeleteAppFilter(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	err := ruleStore.UpsertAppFilter(ctx, &models.AppFilter{AppName: "Zoom", IsBlacklisted: true})
	require.NoError(t, err)

	deleted, err := ruleStore.DeleteAppFilter(ctx, "Zoom")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Second delete finds nothing
	deleted, err = ruleStore.DeleteAppFilter(ctx, "Zoom")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRuleStore_AudioFilterRoundTrip(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	err := ruleStore.UpsertAudioFilter(ctx, &models.AudioFilter{
		SourceName:      "MacBook Pro Microphone",
		IsWhitelisted:   true,
		VolumeThreshold: 0.15,
		Keywords:        []string{"meeting", "standup"},
	})
	require.NoError(t, err)

	got, err := ruleStore.GetAudioFilter(ctx, "MacBook Pro Microphone")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsWhitelisted)
	assert.InDelta(t, 0.15, got.VolumeThreshold, 0.0001)
	assert.Equal(t, []string{"meeting", "standup"}, got.Keywords)
}

func TestRuleStore_AudioFilterValidation(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	err := ruleStore.UpsertAudioFilter(ctx, &models.AudioFilter{
		SourceName:      "Mic",
		VolumeThreshold: 1.5,
	})
	assert.Error(t, err)

	err = ruleStore.UpsertAudioFilter(ctx, &models.AudioFilter{SourceName: ""})
	assert.Error(t, err)
}

func TestRuleStore_ListAudioFilters(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, ruleStore.UpsertAudioFilter(ctx, &models.AudioFilter{SourceName: "Zoom Audio"}))
	require.NoError(t, ruleStore.UpsertAudioFilter(ctx, &models.AudioFilter{SourceName: "Built-in Mic"}))

	filters, err := ruleStore.ListAudioFilters(ctx)
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, "Built-in Mic", filters[0].SourceName)
	assert.Equal(t, "Zoom Audio", filters[1].SourceName)
}

func TestRuleStore_DeleteAudioFilter(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, ruleStore.UpsertAudioFilter(ctx, &models.AudioFilter{SourceName: "Mic"}))

	deleted, err := ruleStore.DeleteAudioFilter(ctx, "Mic")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = ruleStore.DeleteAudioFilter(ctx, "Mic")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRuleStore_PatternRoundTrip(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	err := ruleStore.UpsertPattern(ctx, &models.ContextPattern{
		PatternName:    "meeting-notes",
		AppName:        "Zoom",
		WindowPattern:  "(?i)standup",
		AudioKeywords:  []string{"action item", "follow up"},
		ScreenKeywords: []string{"agenda"},
		TriggerActions: []string{"take_note"},
		IsActive:       true,
	})
	require.NoError(t, err)

	got, err := ruleStore.GetPattern(ctx, "meeting-notes")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "meeting-notes", got.PatternName)
	assert.Equal(t, "Zoom", got.AppName)
	assert.Equal(t, "(?i)standup", got.WindowPattern)
	assert.Equal(t, []string{"action item", "follow up"}, got.AudioKeywords)
	assert.Equal(t, []string{"agenda"}, got.ScreenKeywords)
	assert.Equal(t, []string{"take_note"}, got.TriggerActions)
	assert.True(t, got.IsActive)
}

func TestRuleStore_PatternUpsertReplaces(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, ruleStore.UpsertPattern(ctx, &models.ContextPattern{
		PatternName: "focus-mode",
		AppName:     "Xcode",
		IsActive:    true,
	}))

	// Deactivate via upsert with the same name
	require.NoError(t, ruleStore.UpsertPattern(ctx, &models.ContextPattern{
		PatternName: "focus-mode",
		AppName:     "Xcode",
		IsActive:    false,
	}))

	patterns, err := ruleStore.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.False(t, patterns[0].IsActive)
}

func TestRuleStore_GetPattern_Missing(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	got, err := ruleStore.GetPattern(context.Background(), "no-such-pattern")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleStore_ListPatterns_Ordering(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, ruleStore.UpsertPattern(ctx, &models.ContextPattern{PatternName: "zoom-call", AppName: "Zoom", IsActive: true}))
	require.NoError(t, ruleStore.UpsertPattern(ctx, &models.ContextPattern{PatternName: "code-review", AppName: "Chrome", IsActive: false}))

	patterns, err := ruleStore.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "code-review", patterns[0].PatternName)
	assert.Equal(t, "zoom-call", patterns[1].PatternName)
}

func TestRuleStore_DeletePattern(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, ruleStore.UpsertPattern(ctx, &models.ContextPattern{
		PatternName: "temp",
		AppName:     "Mail",
		IsActive:    true,
	}))

	deleted, err := ruleStore.DeletePattern(ctx, "temp")
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := ruleStore.GetPattern(ctx, "temp")
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = ruleStore.DeletePattern(ctx, "temp")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRuleStore_PatternValidation(t *testing.T) {
	ruleStore, _, cleanup := testRuleStore(t)
	defer cleanup()

	ctx := context.Background()

	// Name required
	err := ruleStore.UpsertPattern(ctx, &models.ContextPattern{AppName: "Zoom"})
	assert.Error(t, err)

	// At least one criterion required
	err = ruleStore.UpsertPattern(ctx, &models.ContextPattern{PatternName: "empty"})
	assert.Error(t, err)
}

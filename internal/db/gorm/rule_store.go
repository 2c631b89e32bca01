package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/aura/pkg/models"
)

// RuleStore provides filter and pattern persistence using GORM.
// Rules are cold-path data: written rarely via the API or rules.yaml,
// read back on startup to warm the in-memory filter and pattern sets.
type RuleStore struct {
	db *gorm.DB
}

// NewRuleStore creates a rule store on top of an open Store.
func NewRuleStore(store *Store) *RuleStore {
	return &RuleStore{db: store.DB}
}

// ====================
// App Filters
// ====================

// UpsertAppFilter inserts or replaces the capture rule for filter.AppName.
func (s *RuleStore) UpsertAppFilter(ctx context.Context, filter *models.AppFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}

	row := &AppFilter{
		AppName:        filter.AppName,
		Whitelisted:    boolToInt(filter.IsWhitelisted),
		Blacklisted:    boolToInt(filter.IsBlacklisted),
		WindowPatterns: models.JSONStringArray(filter.WindowPatterns),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"whitelisted", "blacklisted", "window_patterns", "updated_at"}),
		}).
		Create(row).Error
}

// GetAppFilter retrieves the rule for an app name. Returns nil when no rule exists.
func (s *RuleStore) GetAppFilter(ctx context.Context, appName string) (*models.AppFilter, error) {
	var row AppFilter
	err := s.db.WithContext(ctx).Where("app_name = ?", appName).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelAppFilter(&row), nil
}

// ListAppFilters returns all app capture rules ordered by app name.
func (s *RuleStore) ListAppFilters(ctx context.Context) ([]models.AppFilter, error) {
	var rows []AppFilter
	err := s.db.WithContext(ctx).Order("app_name").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	filters := make([]models.AppFilter, len(rows))
	for i := range rows {
		filters[i] = *toModelAppFilter(&rows[i])
	}
	return filters, nil
}

// DeleteAppFilter removes the rule for an app name.
// Returns whether a row was actually deleted.
func (s *RuleStore) DeleteAppFilter(ctx context.Context, appName string) (bool, error) {
	result := s.db.WithContext(ctx).Where("app_name = ?", appName).Delete(&AppFilter{})
	return result.RowsAffected > 0, result.Error
}

// ====================
// Audio Filters
// ====================

// UpsertAudioFilter inserts or replaces the capture rule for filter.SourceName.
func (s *RuleStore) UpsertAudioFilter(ctx context.Context, filter *models.AudioFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}

	row := &AudioFilter{
		SourceName:      filter.SourceName,
		Whitelisted:     boolToInt(filter.IsWhitelisted),
		Blacklisted:     boolToInt(filter.IsBlacklisted),
		VolumeThreshold: filter.VolumeThreshold,
		Keywords:        models.JSONStringArray(filter.Keywords),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"whitelisted", "blacklisted", "volume_threshold", "keywords", "updated_at"}),
		}).
		Create(row).Error
}

// GetAudioFilter retrieves the rule for an audio source. Returns nil when no rule exists.
func (s *RuleStore) GetAudioFilter(ctx context.Context, sourceName string) (*models.AudioFilter, error) {
	var row AudioFilter
	err := s.db.WithContext(ctx).Where("source_name = ?", sourceName).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelAudioFilter(&row), nil
}

// ListAudioFilters returns all audio capture rules ordered by source name.
func (s *RuleStore) ListAudioFilters(ctx context.Context) ([]models.AudioFilter, error) {
	var rows []AudioFilter
	err := s.db.WithContext(ctx).Order("source_name").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	filters := make([]models.AudioFilter, len(rows))
	for i := range rows {
		filters[i] = *toModelAudioFilter(&rows[i])
	}
	return filters, nil
}

// DeleteAudioFilter removes the rule for an audio source.
// Returns whether a row was actually deleted.
func (s *RuleStore) DeleteAudioFilter(ctx context.Context, sourceName string) (bool, error) {
	result := s.db.WithContext(ctx).Where("source_name = ?", sourceName).Delete(&AudioFilter{})
	return result.RowsAffected > 0, result.Error
}

// ====================
// Context Patterns
// ====================

// UpsertPattern inserts or replaces the pattern named pattern.PatternName.
func (s *RuleStore) UpsertPattern(ctx context.Context, pattern *models.ContextPattern) error {
	if err := pattern.Validate(); err != nil {
		return err
	}

	row := &ContextPattern{
		PatternName:    pattern.PatternName,
		AppName:        pattern.AppName,
		WindowPattern:  sqlNullString(pattern.WindowPattern),
		AudioKeywords:  models.JSONStringArray(pattern.AudioKeywords),
		ScreenKeywords: models.JSONStringArray(pattern.ScreenKeywords),
		TriggerActions: models.JSONStringArray(pattern.TriggerActions),
		IsActive:       boolToInt(pattern.IsActive),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pattern_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"app_name", "window_pattern", "audio_keywords", "screen_keywords", "trigger_actions", "is_active", "updated_at"}),
		}).
		Create(row).Error
}

// GetPattern retrieves a pattern by name. Returns nil when no pattern exists.
func (s *RuleStore) GetPattern(ctx context.Context, patternName string) (*models.ContextPattern, error) {
	var row ContextPattern
	err := s.db.WithContext(ctx).Where("pattern_name = ?", patternName).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelPattern(&row), nil
}

// ListPatterns returns all patterns ordered by name. Inactive patterns are
// included; callers check IsActive when they care.
func (s *RuleStore) ListPatterns(ctx context.Context) ([]models.ContextPattern, error) {
	var rows []ContextPattern
	err := s.db.WithContext(ctx).Order("pattern_name").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	patterns := make([]models.ContextPattern, len(rows))
	for i := range rows {
		patterns[i] = *toModelPattern(&rows[i])
	}
	return patterns, nil
}

// DeletePattern removes a pattern by name.
// Returns whether a row was actually deleted.
func (s *RuleStore) DeletePattern(ctx context.Context, patternName string) (bool, error) {
	result := s.db.WithContext(ctx).Where("pattern_name = ?", patternName).Delete(&ContextPattern{})
	return result.RowsAffected > 0, result.Error
}

// ====================
// Row Conversions
// ====================

// toModelAppFilter converts a GORM AppFilter row to pkg/models.AppFilter.
func toModelAppFilter(row *AppFilter) *models.AppFilter {
	return &models.AppFilter{
		AppName:        row.AppName,
		IsWhitelisted:  row.Whitelisted != 0,
		IsBlacklisted:  row.Blacklisted != 0,
		WindowPatterns: []string(row.WindowPatterns),
	}
}

// toModelAudioFilter converts a GORM AudioFilter row to pkg/models.AudioFilter.
func toModelAudioFilter(row *AudioFilter) *models.AudioFilter {
	return &models.AudioFilter{
		SourceName:      row.SourceName,
		IsWhitelisted:   row.Whitelisted != 0,
		IsBlacklisted:   row.Blacklisted != 0,
		VolumeThreshold: row.VolumeThreshold,
		Keywords:        []string(row.Keywords),
	}
}

// toModelPattern converts a GORM ContextPattern row to pkg/models.ContextPattern.
func toModelPattern(row *ContextPattern) *models.ContextPattern {
	return &models.ContextPattern{
		PatternName:    row.PatternName,
		AppName:        row.AppName,
		WindowPattern:  row.WindowPattern.String,
		AudioKeywords:  []string(row.AudioKeywords),
		ScreenKeywords: []string(row.ScreenKeywords),
		TriggerActions: []string(row.TriggerActions),
		IsActive:       row.IsActive != 0,
	}
}

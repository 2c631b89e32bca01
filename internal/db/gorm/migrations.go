package gorm

import (
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// runMigrations applies the versioned schema steps in order. IDs are
// append-only; editing a shipped step would desync existing databases.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Perception tables
		{
			ID: "001_perception_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&ScreenSnapshot{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&AudioSession{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&ContextSnapshot{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Trigger{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"screen_snapshots", "audio_sessions", "context_snapshots", "triggers")
			},
		},

		// Migration 002: Command history table
		{
			ID: "002_command_history",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CommandHistory{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("command_history")
			},
		},

		// Migration 003: FTS5 virtual table for command history
		{
			ID: "003_command_history_fts",
			Migrate: func(tx *gorm.DB) error {
				sqls := []string{
					`CREATE VIRTUAL TABLE IF NOT EXISTS command_history_fts USING fts5(
						command,
						content='command_history',
						content_rowid='id'
					)`,
					`CREATE TRIGGER IF NOT EXISTS command_history_ai AFTER INSERT ON command_history BEGIN
						INSERT INTO command_history_fts(rowid, command)
						VALUES (new.id, new.command);
					END`,
					`CREATE TRIGGER IF NOT EXISTS command_history_ad AFTER DELETE ON command_history BEGIN
						INSERT INTO command_history_fts(command_history_fts, rowid, command)
						VALUES('delete', old.id, old.command);
					END`,
					`CREATE TRIGGER IF NOT EXISTS command_history_au AFTER UPDATE ON command_history BEGIN
						INSERT INTO command_history_fts(command_history_fts, rowid, command)
						VALUES('delete', old.id, old.command);
						INSERT INTO command_history_fts(rowid, command)
						VALUES (new.id, new.command);
					END`,
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				sqls := []string{
					"DROP TRIGGER IF EXISTS command_history_au",
					"DROP TRIGGER IF EXISTS command_history_ad",
					"DROP TRIGGER IF EXISTS command_history_ai",
					"DROP TABLE IF EXISTS command_history_fts",
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
		},

		// Migration 004: Rules tables with seeded privacy defaults
		{
			ID: "004_rules_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&AppFilter{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&AudioFilter{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&ContextPattern{}); err != nil {
					return err
				}

				// Password managers are never captured out of the box.
				now := time.Now().Format(time.RFC3339)
				filters := []AppFilter{
					{AppName: "1Password", Blacklisted: 1, UpdatedAt: now},
					{AppName: "Bitwarden", Blacklisted: 1, UpdatedAt: now},
					{AppName: "KeePassXC", Blacklisted: 1, UpdatedAt: now},
				}

				// OnConflict keeps re-migration from duplicating seed rows.
				return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&filters).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("app_filters", "audio_filters", "context_patterns")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("apply schema migrations: %w", err)
	}

	return nil
}

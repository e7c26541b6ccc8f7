package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/models"
)

// ErrNotFound is returned when no rule set matches
var ErrNotFound = errors.New("rule set not found")

// Store persists named rule sets in sqlite
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates it
func Open(path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&RuleSetRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save creates or replaces the rule set name. The payload must compile.
func (s *Store) Save(ctx context.Context, name string, defs []models.RuleDefinition) (*RuleSetRecord, error) {
	if name == "" {
		return nil, errors.New("rule set name is required")
	}
	if _, err := blocker.CompileRules(defs); err != nil {
		return nil, err
	}
	if defs == nil {
		defs = []models.RuleDefinition{}
	}
	payload, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}

	var rec RuleSetRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", name).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = RuleSetRecord{Name: name}
		case err != nil:
			return err
		}
		rec.RulesJSON = string(payload)
		rec.RuleCount = len(defs)
		return tx.Save(&rec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", name, err)
	}
	return &rec, nil
}

// Get returns the rule set name with its rules decoded
func (s *Store) Get(ctx context.Context, name string) (*RuleSet, error) {
	var rec RuleSetRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if err != nil {
		return nil, notFound(err, name)
	}
	return decode(rec)
}

// List returns every rule set without its rules, by name
func (s *Store) List(ctx context.Context) ([]RuleSetRecord, error) {
	var recs []RuleSetRecord
	err := s.db.WithContext(ctx).
		Omit("rules_json").
		Order("name").
		Find(&recs).Error
	return recs, err
}

// Activate marks name as the only active rule set
func (s *Store) Activate(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec RuleSetRecord
		if err := tx.Where("name = ?", name).First(&rec).Error; err != nil {
			return notFound(err, name)
		}
		if err := tx.Model(&RuleSetRecord{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&rec).Update("is_active", true).Error
	})
}

// Active returns the active rule set
func (s *Store) Active(ctx context.Context) (*RuleSet, error) {
	var rec RuleSetRecord
	err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&rec).Error
	if err != nil {
		return nil, notFound(err, "active")
	}
	return decode(rec)
}

// Delete removes the rule set name
func (s *Store) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&RuleSetRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func decode(rec RuleSetRecord) (*RuleSet, error) {
	defs, err := models.DecodeRuleDefinitions([]byte(rec.RulesJSON), models.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("rule set %s: %w", rec.Name, err)
	}
	return &RuleSet{RuleSetRecord: rec, Rules: defs}, nil
}

func notFound(err error, name string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

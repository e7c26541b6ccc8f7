package store

import (
	"time"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// RuleSetRecord is a named rule payload
type RuleSetRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	RuleCount int       `json:"rule_count"`
	RulesJSON string    `gorm:"type:text" json:"-"`
	IsActive  bool      `gorm:"default:false;index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RuleSet is a decoded RuleSetRecord
type RuleSet struct {
	RuleSetRecord
	Rules []models.RuleDefinition `json:"rules"`
}

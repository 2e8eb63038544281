// Package modelindex implements the content-addressed model index: a
// persistent store mapping content hashes to model records and their
// filesystem locations.
package modelindex

import "time"

// ModelRecord identifies a model file by its content hash. Immutable once
// created; FileSize participates in identity verification.
type ModelRecord struct {
	Hash      string    `gorm:"primaryKey;type:varchar(64)"`
	FileSize  int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (ModelRecord) TableName() string {
	return "model_records"
}

// ModelLocation is one filesystem location of a model record. A relative
// path identifies at most one location at any time.
type ModelLocation struct {
	ID           uint      `gorm:"primaryKey"`
	ModelHash    string    `gorm:"type:varchar(64);not null;index"`
	RelativePath string    `gorm:"type:varchar(500);not null;uniqueIndex"`
	Filename     string    `gorm:"type:varchar(255);not null;index"` // denormalized basename for filename search
	ModTime      time.Time `gorm:"not null"`
	LastSeen     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (ModelLocation) TableName() string {
	return "model_locations"
}

// WidgetBinding is a trusted hash-to-path binding recorded after a
// successful resolution of a specific widget reference. It backs the
// metadata resolution tier so reruns stay stable even when the path set
// changes ambiguously.
type WidgetBinding struct {
	ID           uint      `gorm:"primaryKey"`
	Workflow     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_widget_binding"`
	NodeID       string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_widget_binding"`
	WidgetIndex  int       `gorm:"not null;uniqueIndex:idx_widget_binding"`
	RawValue     string    `gorm:"type:varchar(500);not null;uniqueIndex:idx_widget_binding"`
	ModelHash    string    `gorm:"type:varchar(64);not null"`
	RelativePath string    `gorm:"type:varchar(500);not null"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (WidgetBinding) TableName() string {
	return "widget_bindings"
}

// ModelWithLocation is a materialized join of a record and one of its
// locations. Produced by index queries, never stored.
type ModelWithLocation struct {
	Hash         string
	Filename     string
	FileSize     int64
	RelativePath string
	ModTime      time.Time
	LastSeen     time.Time
}

// Stats summarizes the persisted index state.
type Stats struct {
	TotalModels    int64
	TotalLocations int64
}

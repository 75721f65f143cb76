package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

var _ ports.Storage = (*SQLiteAdapter)(nil)

// VenueModel is the GORM model for venues.
type VenueModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Description  string
	Latitude     float64
	Longitude    float64
	ImageURL     string
	EntryPrice   float64
	ActivityType string
	Activities   string // JSON encoded []string
	CreatedAt    time.Time `gorm:"index"`
	CreatedBy    string
}

func (VenueModel) TableName() string { return "venues" }

// MessageModel stores chat messages. Messages belong to a venue and are
// removed with it.
type MessageModel struct {
	ID              string `gorm:"primaryKey"`
	VenueID         string `gorm:"index:idx_messages_venue_ts,priority:1"`
	UserID          string
	UserDisplayName string
	Message         string
	Timestamp       time.Time `gorm:"index:idx_messages_venue_ts,priority:2"`
}

func (MessageModel) TableName() string { return "messages" }

// UserModel mirrors identity-provider profiles. Location columns are only
// written by the location batch path.
type UserModel struct {
	ID                 string `gorm:"primaryKey"`
	Email              string
	DisplayName        string
	Role               string
	CreatedAt          time.Time
	LastLogin          time.Time
	HasLocation        bool
	Latitude           float64
	Longitude          float64
	LastLocationUpdate time.Time `gorm:"index"`
}

func (UserModel) TableName() string { return "users" }

// AuditModel is the GORM model for audit entries.
type AuditModel struct {
	ID        uint `gorm:"primaryKey"`
	UserID    string
	Username  string
	Action    string `gorm:"index"`
	Target    string
	Details   string
	IPAddress string
	Timestamp time.Time `gorm:"index"`
}

func (AuditModel) TableName() string { return "audit_logs" }

// NewSQLiteAdapter opens the database, installs query tracing and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	} else {
		db.Exec("PRAGMA journal_mode=WAL")
	}
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics(), tracing.WithoutQueryVariables())); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}

	if err := db.AutoMigrate(&VenueModel{}, &MessageModel{}, &UserModel{}, &AuditModel{}); err != nil {
		return nil, err
	}

	return &SQLiteAdapter{db: db}, nil
}

// Close closes the underlying connection pool.
func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database still answers.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mintgate/core/events"
	"mintgate/core/types"
)

const (
	defaultFilePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	defaultListLimit   = 100
	maxListLimit       = 1000
)

// ErrPathRequired is returned when the event log path is missing.
var ErrPathRequired = errors.New("eventlog: path must be configured")

// Record is the table row for one archived event.
type Record struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Type       string `gorm:"size:64;not null;index"`
	Attributes string `gorm:"type:text;not null"`
	RecordedAt int64  `gorm:"not null"`
}

// TableName pins the table name independent of gorm's pluralisation.
func (Record) TableName() string { return "registry_events" }

// Entry is one archived event as returned to callers.
type Entry struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt int64             `json:"recordedAt"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type    string `json:"type,omitempty"`
	AfterID int64  `json:"afterId,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Log is an append-only SQLite archive of registry events. It implements
// events.Emitter so it can sit directly behind the engine.
type Log struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// FileDSN converts a filesystem path into an on-disk SQLite DSN.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve event log path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// Open initialises the archive from a sqlite DSN and migrates the schema.
func Open(dsn string, log *slog.Logger) (*Log, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("event log handle: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises appends.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate event log: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Log{db: db, logger: log.With(slog.String("component", "eventlog")), nowFn: time.Now}, nil
}

// Close releases database resources.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Archive failures are logged; the state
// change that produced the event has already been committed.
func (l *Log) Emit(evt events.Event) {
	if l == nil || evt == nil {
		return
	}
	if _, err := l.Append(context.Background(), events.Flatten(evt)); err != nil {
		l.logger.Error("append event failed",
			slog.String("reason", evt.EventType()),
			slog.Any("error", err))
	}
}

// Append stores evt and returns its sequence number.
func (l *Log) Append(ctx context.Context, evt *types.Event) (int64, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("eventlog: not configured")
	}
	if evt == nil || strings.TrimSpace(evt.Type) == "" {
		return 0, fmt.Errorf("eventlog: event type required")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return 0, fmt.Errorf("encode attributes: %w", err)
	}
	rec := Record{
		Type:       evt.Type,
		Attributes: string(encoded),
		RecordedAt: l.nowFn().UTC().Unix(),
	}
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return rec.ID, nil
}

// List returns archived events in ascending sequence order.
func (l *Log) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("eventlog: not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := l.db.WithContext(ctx).Where("id > ?", filter.AfterID)
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	var records []Record
	if err := query.Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entry := Entry{ID: rec.ID, Type: rec.Type, RecordedAt: rec.RecordedAt}
		if err := json.Unmarshal([]byte(rec.Attributes), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes for event %d: %w", rec.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Count returns the number of archived events.
func (l *Log) Count(ctx context.Context) (int64, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("eventlog: not configured")
	}
	var n int64
	if err := l.db.WithContext(ctx).Model(&Record{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Package localstore persists client state in a local SQLite file: cached
// conversations and the workout timer.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/chat"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/timer"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	keyTimerTarget   = "timer_target"
	keyTimerDuration = "timer_duration"
)

// conversationCache one cached conversation, messages stored as JSON
type conversationCache struct {
	OwnerID       string    `gorm:"column:owner_id;primaryKey"`
	PeerID        string    `gorm:"column:peer_id;primaryKey"`
	Payload       string    `gorm:"column:payload;type:text;not null"`
	LastWrittenAt time.Time `gorm:"column:last_written_at;not null"`
}

func (conversationCache) TableName() string { return "conversation_cache" }

type setting struct {
	Key   string `gorm:"column:name;primaryKey"`
	Value string `gorm:"column:value;type:text"`
}

func (setting) TableName() string { return "settings" }

// Store is a SQLite-backed chat.Cache and timer.Store
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

var (
	_ chat.Cache  = (*Store)(nil)
	_ timer.Store = (*Store)(nil)
)

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an open database and creates the tables
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&conversationCache{}, &setting{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &Store{db: db, log: pkglogger.Component("localstore")}, nil
}

// Close releases the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load returns the cached conversation. A row that does not decode counts
// as a miss.
func (s *Store) Load(ownerID, peerID string) (chat.Entry, bool) {
	var row conversationCache
	err := s.db.Where("owner_id = ? AND peer_id = ?", ownerID, peerID).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Err(err).Str("peer_id", peerID).Msg("cache read failed")
		}
		return chat.Entry{}, false
	}

	var msgs []domain.Message
	if err := json.Unmarshal([]byte(row.Payload), &msgs); err != nil {
		s.log.Warn().Err(err).Str("peer_id", peerID).Msg("corrupt cache entry ignored")
		return chat.Entry{}, false
	}
	return chat.Entry{
		OwnerID:       row.OwnerID,
		PeerID:        row.PeerID,
		Messages:      msgs,
		LastWrittenAt: row.LastWrittenAt,
	}, true
}

// Store replaces the cached conversation
func (s *Store) Store(entry chat.Entry) error {
	payload, err := json.Marshal(entry.Messages)
	if err != nil {
		return err
	}
	if entry.LastWrittenAt.IsZero() {
		entry.LastWrittenAt = time.Now()
	}
	row := conversationCache{
		OwnerID:       entry.OwnerID,
		PeerID:        entry.PeerID,
		Payload:       string(payload),
		LastWrittenAt: entry.LastWrittenAt.UTC(),
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Clear removes the cached conversation
func (s *Store) Clear(ownerID, peerID string) error {
	return s.db.Where("owner_id = ? AND peer_id = ?", ownerID, peerID).Delete(&conversationCache{}).Error
}

// LoadTimer reads the persisted timer. ok is false when nothing was saved.
func (s *Store) LoadTimer(ctx context.Context) (timer.State, bool, error) {
	var rows []setting
	if err := s.db.WithContext(ctx).Where("name IN ?", []string{keyTimerTarget, keyTimerDuration}).Find(&rows).Error; err != nil {
		return timer.State{}, false, err
	}
	if len(rows) == 0 {
		return timer.State{}, false, nil
	}

	var state timer.State
	for _, r := range rows {
		n, err := strconv.ParseInt(r.Value, 10, 64)
		if err != nil {
			s.log.Warn().Str("key", r.Key).Msg("ignoring unreadable timer setting")
			continue
		}
		switch r.Key {
		case keyTimerTarget:
			target := time.UnixMilli(n)
			state.TargetAt = &target
		case keyTimerDuration:
			state.DurationSeconds = int(n)
		}
	}
	return state, true, nil
}

// SaveTimer persists the timer; a nil target removes the stored one
func (s *Store) SaveTimer(ctx context.Context, state timer.State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{UpdateAll: true})
		if err := upsert.Create(&setting{Key: keyTimerDuration, Value: strconv.Itoa(state.DurationSeconds)}).Error; err != nil {
			return err
		}
		if state.TargetAt == nil {
			return tx.Where("name = ?", keyTimerTarget).Delete(&setting{}).Error
		}
		return upsert.Create(&setting{Key: keyTimerTarget, Value: strconv.FormatInt(state.TargetAt.UnixMilli(), 10)}).Error
	})
}

// Package store persists clustering runs to a relational database so results
// survive the process and can be compared across collections of the same
// keyword set.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grykalski/keyword-clusterer/clusterer"
)

// Run is one persisted clustering run.
type Run struct {
	ID           uint   `gorm:"primarykey"`
	SessionID    string `gorm:"uniqueIndex;size:36"`
	Provenance   string
	PhraseCount  int
	GroupCount   int
	OutlierCount int
	OutlierRatio float64
	QualityGoal  bool
	CreatedAt    time.Time

	Groups []Group `gorm:"constraint:OnDelete:CASCADE"`
}

// Group is one semantic group within a run. GroupNumber mirrors the in-memory
// group index; -1 is the reserved unclustered bucket.
type Group struct {
	ID          uint `gorm:"primarykey"`
	RunID       uint `gorm:"index"`
	GroupNumber int
	Name        string
	Description string
	MemberCount int

	Members []Member `gorm:"constraint:OnDelete:CASCADE"`
}

// Member is one phrase within a persisted group.
type Member struct {
	ID      uint   `gorm:"primarykey"`
	GroupID uint   `gorm:"index"`
	Phrase  string `gorm:"size:255"`
}

// ErrRunNotFound is returned when no run exists for the given session ID.
var ErrRunNotFound = errors.New("clustering run not found")

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &Group{}, &Member{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveResult persists a clustering result as a new run and returns its session
// ID. The run, its groups, and all members are written in one transaction.
func (s *Store) SaveResult(ctx context.Context, res *clusterer.Result) (string, error) {
	run := &Run{
		SessionID:    uuid.New().String(),
		Provenance:   string(res.Provenance),
		PhraseCount:  len(res.Phrases),
		GroupCount:   res.Metrics.GroupCount,
		OutlierCount: res.Metrics.OutlierCount,
		OutlierRatio: res.Metrics.OutlierRatio,
		QualityGoal:  res.Metrics.QualityGoalAchieved,
	}

	for _, g := range res.Groups {
		stored := Group{
			GroupNumber: g.Index,
			Name:        g.Name,
			Description: g.Description,
			MemberCount: len(g.Phrases),
		}
		for _, phrase := range g.Phrases {
			stored.Members = append(stored.Members, Member{Phrase: phrase})
		}
		run.Groups = append(run.Groups, stored)
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return "", fmt.Errorf("failed to save clustering run: %w", err)
	}
	return run.SessionID, nil
}

// GetRun loads a run with its groups and members by session ID.
func (s *Store) GetRun(ctx context.Context, sessionID string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB { return db.Order("group_number") }).
		Preload("Groups.Members").
		Where("session_id = ?", sessionID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load clustering run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first, without their groups.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []Run
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clustering runs: %w", err)
	}
	return runs, nil
}

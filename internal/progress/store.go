// Package progress keeps the learner's points, completed topics and badges,
// and persists a snapshot after every change.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
)

const (
	// TopicReward is awarded the first time a topic is completed.
	TopicReward = 50
	// CorrectAnswerReward is awarded for a correct quiz answer.
	CorrectAnswerReward = 10
)

var (
	ErrInvalidAmount = errors.New("points amount must be at least 1")
	ErrInvalidTopic  = errors.New("topic id is empty")
	// ErrPersistence wraps storage failures. They are logged, never returned by Store methods.
	ErrPersistence = errors.New("progress persistence failed")
)

// Progress is the persisted state.
type Progress struct {
	Points          int      `json:"points"`
	CompletedTopics []string `json:"completedTopics"`
	EarnedBadges    []string `json:"earnedBadges"`
}

// HasCompleted reports whether topicID is in the completed set.
func (p Progress) HasCompleted(topicID string) bool {
	return slices.Contains(p.CompletedTopics, topicID)
}

// HasBadge reports whether badgeID has been earned.
func (p Progress) HasBadge(badgeID string) bool {
	return slices.Contains(p.EarnedBadges, badgeID)
}

func (p Progress) clone() Progress {
	return Progress{
		Points:          p.Points,
		CompletedTopics: append([]string{}, p.CompletedTopics...),
		EarnedBadges:    append([]string{}, p.EarnedBadges...),
	}
}

// Update describes one state change and the state after it.
type Update struct {
	Progress  Progress `json:"progress"`
	Awarded   int      `json:"awarded"`
	Completed bool     `json:"completed"`
	NewBadges []Badge  `json:"newBadges,omitempty"`
}

// Summary adds catalog context to a Progress value.
type Summary struct {
	Progress
	TotalBadges    int     `json:"totalBadges"`
	NextBadge      *Badge  `json:"nextBadge,omitempty"`
	NextBadgeRatio float64 `json:"nextBadgeRatio"`
}

// Summarize computes the next unearned badge and how close p is to it.
// With every badge earned the ratio is 1.
func Summarize(catalog []Badge, p Progress) Summary {
	s := Summary{Progress: p, TotalBadges: len(catalog), NextBadgeRatio: 1}
	if next := nextBadge(catalog, p.EarnedBadges); next != nil {
		s.NextBadge = next
		s.NextBadgeRatio = min(float64(p.Points)/float64(next.Threshold), 1)
	}
	return s
}

// Config configures a Store.
type Config struct {
	// Persister defaults to an empty MemoryPersister.
	Persister Persister
	// Catalog defaults to DefaultCatalog.
	Catalog []Badge
	// Notify is called after every change while the store is locked.
	// It must not block or call back into the store.
	Notify func(Update)
}

// Store is the single writer of the progress blob. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	state   Progress
	catalog []Badge
	notify  func(Update)
	saver   *saver
}

// Open loads persisted progress and starts the background writer. It never
// fails: absent, unreadable or corrupt data yields the zero state.
// Call Close to flush pending writes.
func Open(ctx context.Context, cfg Config) *Store {
	persister := cfg.Persister
	if persister == nil {
		persister = NewMemoryPersister(nil)
	}
	catalog := cfg.Catalog
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}

	s := &Store{
		state:   load(ctx, persister),
		catalog: slices.Clone(catalog),
		notify:  cfg.Notify,
		saver:   newSaver(persister),
	}

	// Catch up on badges added to the catalog since the blob was written.
	if fresh := newlyEligible(s.catalog, s.state.Points, s.state.EarnedBadges); len(fresh) > 0 {
		for _, b := range fresh {
			s.state.EarnedBadges = append(s.state.EarnedBadges, b.ID)
		}
		s.persistLocked()
	}

	slog.Info("progress loaded",
		"points", s.state.Points,
		"completed_topics", len(s.state.CompletedTopics),
		"earned_badges", len(s.state.EarnedBadges),
	)
	return s
}

func load(ctx context.Context, persister Persister) Progress {
	empty := Progress{CompletedTopics: []string{}, EarnedBadges: []string{}}

	data, err := persister.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return empty
	}
	if err != nil {
		slog.Warn("progress unreadable, starting fresh", "error", fmt.Errorf("%w: %w", ErrPersistence, err))
		return empty
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("progress corrupt, starting fresh", "error", err)
		return empty
	}
	if p.Points < 0 {
		slog.Warn("progress corrupt, starting fresh", "error", fmt.Sprintf("negative points %d", p.Points))
		return empty
	}

	p.CompletedTopics = uniq(p.CompletedTopics)
	p.EarnedBadges = uniq(p.EarnedBadges)
	return p
}

// uniq drops empty and repeated ids, keeping first occurrences.
func uniq(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// AddPoints adds amount and awards every badge whose threshold is now reached.
func (s *Store) AddPoints(amount int) (Update, error) {
	if amount < 1 {
		return Update{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if amount > math.MaxInt-s.state.Points {
		return Update{}, fmt.Errorf("%w: %d would overflow %d points", ErrInvalidAmount, amount, s.state.Points)
	}
	u := s.addPointsLocked(amount)
	s.commitLocked(&u)
	return u, nil
}

// CompleteTopic marks topicID completed and awards TopicReward. Completing a
// topic twice is a no-op; the returned Update then has Completed == false.
func (s *Store) CompleteTopic(topicID string) (Update, error) {
	if topicID == "" {
		return Update{}, ErrInvalidTopic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.HasCompleted(topicID) {
		return Update{Progress: s.state.clone()}, nil
	}

	s.state.CompletedTopics = append(s.state.CompletedTopics, topicID)
	u := s.addPointsLocked(TopicReward)
	u.Completed = true
	s.commitLocked(&u)

	slog.Info("topic completed", "topic_id", topicID, "points", s.state.Points)
	return u, nil
}

// addPointsLocked saturates at math.MaxInt so points never wrap negative.
func (s *Store) addPointsLocked(amount int) Update {
	amount = min(amount, math.MaxInt-s.state.Points)
	s.state.Points += amount
	fresh := newlyEligible(s.catalog, s.state.Points, s.state.EarnedBadges)
	for _, b := range fresh {
		s.state.EarnedBadges = append(s.state.EarnedBadges, b.ID)
		slog.Info("badge earned", "badge_id", b.ID, "points", s.state.Points)
	}
	return Update{Awarded: amount, NewBadges: fresh}
}

func (s *Store) commitLocked(u *Update) {
	u.Progress = s.state.clone()
	s.persistLocked()
	if s.notify != nil {
		s.notify(*u)
	}
}

// persistLocked hands a snapshot to the writer without waiting for it.
func (s *Store) persistLocked() {
	data, err := json.Marshal(s.state)
	if err != nil {
		slog.Error("encoding progress failed", "error", fmt.Errorf("%w: %w", ErrPersistence, err))
		return
	}
	s.saver.enqueue(data)
}

// Progress returns a copy of the current state.
func (s *Store) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Summary returns the current state with next-badge information.
func (s *Store) Summary() Summary {
	return Summarize(s.catalog, s.Progress())
}

// Catalog returns the badge catalog in authored order.
func (s *Store) Catalog() []Badge {
	return slices.Clone(s.catalog)
}

// Flush waits until every change made so far has been written (or failed to be).
func (s *Store) Flush(ctx context.Context) error {
	return s.saver.flush(ctx)
}

// Close flushes pending writes and stops the writer. Changes made after Close
// stay in memory only.
func (s *Store) Close(ctx context.Context) error {
	return s.saver.close(ctx)
}

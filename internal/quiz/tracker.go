// Package quiz keeps generated questions between the moment they are asked and
// the moment they are answered.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/statsquest/internal/curriculum"
	"github.com/p-n-ai/statsquest/internal/progress"
	"github.com/p-n-ai/statsquest/internal/tutor"
)

// DefaultTTL is how long an unanswered question stays available.
const DefaultTTL = 30 * time.Minute

var (
	ErrNotFound        = errors.New("question not found or expired")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrInvalidChoice   = errors.New("choice is not one of the options")
)

// Generator produces questions and hints. *tutor.Gateway implements it.
type Generator interface {
	GenerateQuizQuestion(ctx context.Context, topicTitle string) (tutor.QuizQuestion, error)
	GenerateHint(ctx context.Context, question string, options []string) (string, error)
}

// Scorer records rewards. *progress.Store implements it.
type Scorer interface {
	AddPoints(amount int) (progress.Update, error)
	CompleteTopic(topicID string) (progress.Update, error)
}

// Issued is a question as shown to the learner, without its answer.
type Issued struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topicId"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Result is the outcome of answering a question.
type Result struct {
	Correct            bool            `json:"correct"`
	CorrectOptionIndex int             `json:"correctOptionIndex"`
	Explanation        string          `json:"explanation"`
	Update             progress.Update `json:"update"`
}

type entry struct {
	topicID   string
	question  tutor.QuizQuestion
	expiresAt time.Time
	answered  bool
}

// Tracker holds outstanding questions in memory.
type Tracker struct {
	gen    Generator
	scorer Scorer
	ttl    time.Duration
	clock  func() time.Time
	newID  func() string

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now (for testing).
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker creates a tracker. ttl <= 0 uses DefaultTTL.
func NewTracker(gen Generator, scorer Scorer, ttl time.Duration, opts ...Option) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Tracker{
		gen:     gen,
		scorer:  scorer,
		ttl:     ttl,
		clock:   time.Now,
		newID:   uuid.NewString,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Next generates a new question about topic. Generator errors are returned unchanged.
func (t *Tracker) Next(ctx context.Context, topic curriculum.Topic) (Issued, error) {
	q, err := t.gen.GenerateQuizQuestion(ctx, topic.Title)
	if err != nil {
		return Issued{}, err
	}

	now := t.clock()
	id := t.newID()
	e := &entry{topicID: topic.ID, question: q, expiresAt: now.Add(t.ttl)}

	t.mu.Lock()
	t.pruneLocked(now)
	t.entries[id] = e
	t.mu.Unlock()

	slog.Debug("quiz question issued", "question_id", id, "topic_id", topic.ID)
	return Issued{
		ID:        id,
		TopicID:   topic.ID,
		Question:  q.Question,
		Options:   append([]string(nil), q.Options...),
		ExpiresAt: e.expiresAt,
	}, nil
}

// Answer checks choice. Only the first answer counts; a correct one earns
// progress.CorrectAnswerReward.
func (t *Tracker) Answer(id string, choice int) (Result, error) {
	t.mu.Lock()
	e, err := t.lookupLocked(id)
	if err != nil {
		t.mu.Unlock()
		return Result{}, err
	}
	if e.answered {
		t.mu.Unlock()
		return Result{}, ErrAlreadyAnswered
	}
	if choice < 0 || choice >= len(e.question.Options) {
		t.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}
	e.answered = true
	q := e.question
	t.mu.Unlock()

	res := Result{
		Correct:            choice == q.CorrectOptionIndex,
		CorrectOptionIndex: q.CorrectOptionIndex,
		Explanation:        q.Explanation,
	}
	if res.Correct {
		u, err := t.scorer.AddPoints(progress.CorrectAnswerReward)
		if err != nil {
			return Result{}, fmt.Errorf("award points: %w", err)
		}
		res.Update = u
	}

	slog.Info("quiz question answered", "question_id", id, "topic_id", e.topicID, "correct", res.Correct)
	return res, nil
}

// Hint asks the generator for a hint on an unanswered question.
func (t *Tracker) Hint(ctx context.Context, id string) (string, error) {
	t.mu.Lock()
	e, err := t.lookupLocked(id)
	if err != nil {
		t.mu.Unlock()
		return "", err
	}
	if e.answered {
		t.mu.Unlock()
		return "", ErrAlreadyAnswered
	}
	q := e.question
	t.mu.Unlock()

	return t.gen.GenerateHint(ctx, q.Question, q.Options)
}

// Finish completes the quiz's topic.
func (t *Tracker) Finish(topicID string) (progress.Update, error) {
	return t.scorer.CompleteTopic(topicID)
}

// Len returns the number of unexpired questions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.clock())
	return len(t.entries)
}

func (t *Tracker) lookupLocked(id string) (*entry, error) {
	now := t.clock()
	t.pruneLocked(now)
	e, ok := t.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (t *Tracker) pruneLocked(now time.Time) {
	for id, e := range t.entries {
		if !e.expiresAt.After(now) {
			delete(t.entries, id)
		}
	}
}

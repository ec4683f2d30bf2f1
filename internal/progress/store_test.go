package progress_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/statsquest/internal/progress"
)

func openMemory(t *testing.T, seed []byte, catalog []progress.Badge) (*progress.Store, *progress.MemoryPersister) {
	t.Helper()
	p := progress.NewMemoryPersister(seed)
	s := progress.Open(context.Background(), progress.Config{Persister: p, Catalog: catalog})
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, p
}

func flush(t *testing.T, s *progress.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// expectedBadges is the set of ids whose threshold is reached by points.
func expectedBadges(catalog []progress.Badge, points int) []string {
	var ids []string
	for _, b := range catalog {
		if b.Threshold <= points {
			ids = append(ids, b.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	sort.Strings(out)
	return out
}

func TestAddPoints_BadgesFollowPoints(t *testing.T) {
	tests := []struct {
		name    string
		amounts []int
	}{
		{"single small", []int{10}},
		{"reach beginner exactly", []int{20, 30}},
		{"jump past two", []int{250}},
		{"jump past all", []int{1000}},
		{"many increments", []int{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 100, 100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := openMemory(t, nil, nil)

			sum := 0
			for _, n := range tt.amounts {
				if _, err := s.AddPoints(n); err != nil {
					t.Fatalf("AddPoints(%d) error = %v", n, err)
				}
				sum += n
			}

			got := s.Progress()
			if got.Points != sum {
				t.Errorf("Points = %d, want %d", got.Points, sum)
			}
			want := expectedBadges(progress.DefaultCatalog, sum)
			if !slices.Equal(sorted(got.EarnedBadges), want) {
				t.Errorf("EarnedBadges = %v, want %v", got.EarnedBadges, want)
			}
		})
	}
}

func TestAddPoints_EqualThresholdsInOneCall(t *testing.T) {
	catalog := []progress.Badge{{ID: "a", Threshold: 100}, {ID: "b", Threshold: 100}}
	s, _ := openMemory(t, nil, catalog)

	u, err := s.AddPoints(150)
	if err != nil {
		t.Fatalf("AddPoints() error = %v", err)
	}
	if u.Progress.Points != 150 {
		t.Errorf("Points = %d, want 150", u.Progress.Points)
	}
	if !slices.Equal(sorted(u.Progress.EarnedBadges), []string{"a", "b"}) {
		t.Errorf("EarnedBadges = %v, want [a b]", u.Progress.EarnedBadges)
	}
	if len(u.NewBadges) != 2 {
		t.Errorf("NewBadges = %v, want both", u.NewBadges)
	}
}

func TestAddPoints_InvalidAmount(t *testing.T) {
	s, p := openMemory(t, nil, nil)

	for _, n := range []int{0, -5} {
		if _, err := s.AddPoints(n); !errors.Is(err, progress.ErrInvalidAmount) {
			t.Errorf("AddPoints(%d) error = %v, want ErrInvalidAmount", n, err)
		}
	}
	flush(t, s)
	if s.Progress().Points != 0 {
		t.Errorf("Points = %d, want 0", s.Progress().Points)
	}
	if p.Saves() != 0 {
		t.Errorf("Saves() = %d, want 0", p.Saves())
	}
}

func TestAddPoints_Overflow(t *testing.T) {
	s, p := openMemory(t, nil, nil)
	if _, err := s.AddPoints(50); err != nil {
		t.Fatalf("AddPoints(50) error = %v", err)
	}
	flush(t, s)
	saves := p.Saves()

	for _, n := range []int{math.MaxInt, math.MaxInt - 49} {
		if _, err := s.AddPoints(n); !errors.Is(err, progress.ErrInvalidAmount) {
			t.Errorf("AddPoints(%d) error = %v, want ErrInvalidAmount", n, err)
		}
	}
	flush(t, s)
	if got := s.Progress().Points; got != 50 {
		t.Errorf("Points = %d, want 50", got)
	}
	if p.Saves() != saves {
		t.Errorf("Saves() = %d, want %d", p.Saves(), saves)
	}

	if _, err := s.AddPoints(math.MaxInt - 50); err != nil {
		t.Fatalf("AddPoints(MaxInt-50) error = %v", err)
	}
	if got := s.Progress().Points; got != math.MaxInt {
		t.Errorf("Points = %d, want MaxInt", got)
	}
}

func TestCompleteTopic_SaturatesPoints(t *testing.T) {
	seed := []byte(fmt.Sprintf(`{"points":%d,"completedTopics":[],"earnedBadges":["beginner","adept","expert"]}`, math.MaxInt-10))
	s, _ := openMemory(t, seed, nil)

	u, err := s.CompleteTopic("x")
	if err != nil {
		t.Fatalf("CompleteTopic() error = %v", err)
	}
	if u.Progress.Points != math.MaxInt || u.Awarded != 10 || !u.Completed {
		t.Errorf("update = %+v, want points capped at MaxInt", u)
	}
}

func TestCompleteTopic_Idempotent(t *testing.T) {
	s, p := openMemory(t, nil, nil)

	u, err := s.CompleteTopic("x")
	if err != nil {
		t.Fatalf("CompleteTopic() error = %v", err)
	}
	if !u.Completed || u.Awarded != progress.TopicReward {
		t.Errorf("first update = %+v, want completed with %d points", u, progress.TopicReward)
	}
	if !slices.Equal(u.NewBadges, progress.DefaultCatalog[:1]) {
		t.Errorf("NewBadges = %v, want beginner", u.NewBadges)
	}
	flush(t, s)
	savesAfterFirst := p.Saves()

	u, err = s.CompleteTopic("x")
	if err != nil {
		t.Fatalf("second CompleteTopic() error = %v", err)
	}
	if u.Completed || u.Awarded != 0 {
		t.Errorf("second update = %+v, want no-op", u)
	}
	flush(t, s)

	got := s.Progress()
	if got.Points != 50 {
		t.Errorf("Points = %d, want 50", got.Points)
	}
	if !slices.Equal(got.CompletedTopics, []string{"x"}) {
		t.Errorf("CompletedTopics = %v, want [x]", got.CompletedTopics)
	}
	if p.Saves() != savesAfterFirst {
		t.Errorf("repeat completion persisted: saves %d -> %d", savesAfterFirst, p.Saves())
	}
}

func TestCompleteTopic_EmptyID(t *testing.T) {
	s, _ := openMemory(t, nil, nil)
	if _, err := s.CompleteTopic(""); !errors.Is(err, progress.ErrInvalidTopic) {
		t.Errorf("error = %v, want ErrInvalidTopic", err)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s, p := openMemory(t, nil, nil)
	s.CompleteTopic("mean")
	s.CompleteTopic("median")
	s.AddPoints(progress.CorrectAnswerReward)
	flush(t, s)
	want := s.Progress()

	reloaded := progress.Open(context.Background(), progress.Config{Persister: progress.NewMemoryPersister(p.Data())})
	defer reloaded.Close(context.Background())

	got := reloaded.Progress()
	if got.Points != want.Points {
		t.Errorf("Points = %d, want %d", got.Points, want.Points)
	}
	if !slices.Equal(sorted(got.CompletedTopics), sorted(want.CompletedTopics)) {
		t.Errorf("CompletedTopics = %v, want %v", got.CompletedTopics, want.CompletedTopics)
	}
	if !slices.Equal(sorted(got.EarnedBadges), sorted(want.EarnedBadges)) {
		t.Errorf("EarnedBadges = %v, want %v", got.EarnedBadges, want.EarnedBadges)
	}
}

func TestOpen_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		name    string
		seed    []byte
		loadErr error
	}{
		{"absent", nil, nil},
		{"corrupt json", []byte(`{"points": "lots"`), nil},
		{"not an object", []byte(`[1,2,3]`), nil},
		{"negative points", []byte(`{"points": -10, "completedTopics": [], "earnedBadges": []}`), nil},
		{"storage error", nil, errors.New("quota exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := progress.NewMemoryPersister(tt.seed)
			p.LoadErr = tt.loadErr
			s := progress.Open(context.Background(), progress.Config{Persister: p})
			defer s.Close(context.Background())

			got := s.Progress()
			if got.Points != 0 || len(got.CompletedTopics) != 0 || len(got.EarnedBadges) != 0 {
				t.Errorf("Progress() = %+v, want zero state", got)
			}
			if got.CompletedTopics == nil || got.EarnedBadges == nil {
				t.Error("zero state should use empty, non-nil sets")
			}
		})
	}
}

func TestOpen_BadgePassAddsButNeverRevokes(t *testing.T) {
	seed, _ := json.Marshal(progress.Progress{
		Points:          250,
		CompletedTopics: []string{"a", "a", ""},
		EarnedBadges:    []string{"legacy"},
	})
	s, p := openMemory(t, seed, nil)

	got := s.Progress()
	want := []string{"adept", "beginner", "legacy"}
	if !slices.Equal(sorted(got.EarnedBadges), want) {
		t.Errorf("EarnedBadges = %v, want %v", got.EarnedBadges, want)
	}
	if !slices.Equal(got.CompletedTopics, []string{"a"}) {
		t.Errorf("CompletedTopics = %v, want deduplicated [a]", got.CompletedTopics)
	}

	flush(t, s)
	if p.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1 after catching up badges", p.Saves())
	}
}

func TestStore_PersistenceFailureIsSwallowed(t *testing.T) {
	p := progress.NewMemoryPersister(nil)
	p.SaveErr = errors.New("disk full")
	s := progress.Open(context.Background(), progress.Config{Persister: p})
	defer s.Close(context.Background())

	u, err := s.CompleteTopic("mean")
	if err != nil {
		t.Fatalf("CompleteTopic() error = %v, want nil despite failing storage", err)
	}
	flush(t, s)

	if u.Progress.Points != 50 || s.Progress().Points != 50 {
		t.Errorf("in-memory state lost: %+v", s.Progress())
	}
}

func TestStore_PersistsLatestSnapshot(t *testing.T) {
	s, p := openMemory(t, nil, nil)

	for i := 0; i < 20; i++ {
		s.AddPoints(5)
	}
	flush(t, s)

	var saved progress.Progress
	if err := json.Unmarshal(p.Data(), &saved); err != nil {
		t.Fatalf("saved blob is not JSON: %v", err)
	}
	if saved.Points != 100 {
		t.Errorf("saved points = %d, want 100", saved.Points)
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s, p := openMemory(t, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddPoints(10)
		}()
	}
	wg.Wait()
	flush(t, s)

	if got := s.Progress().Points; got != 500 {
		t.Errorf("Points = %d, want 500", got)
	}
	var saved progress.Progress
	json.Unmarshal(p.Data(), &saved)
	if saved.Points != 500 {
		t.Errorf("saved points = %d, want 500", saved.Points)
	}
	if len(saved.EarnedBadges) != 3 {
		t.Errorf("saved badges = %v, want all three", saved.EarnedBadges)
	}
}

func TestStore_Notify(t *testing.T) {
	var updates []progress.Update
	s := progress.Open(context.Background(), progress.Config{
		Notify: func(u progress.Update) { updates = append(updates, u) },
	})
	defer s.Close(context.Background())

	s.CompleteTopic("mean")
	s.CompleteTopic("mean")
	s.AddPoints(10)

	if len(updates) != 2 {
		t.Fatalf("got %d notifications, want 2", len(updates))
	}
	if !updates[0].Completed || updates[1].Progress.Points != 60 {
		t.Errorf("updates = %+v", updates)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		progress  progress.Progress
		wantNext  string
		wantRatio float64
	}{
		{"fresh", progress.Progress{}, "beginner", 0},
		{"halfway to beginner", progress.Progress{Points: 25}, "beginner", 0.5},
		{"toward adept", progress.Progress{Points: 100, EarnedBadges: []string{"beginner"}}, "adept", 0.5},
		{"all earned", progress.Progress{Points: 900, EarnedBadges: []string{"beginner", "adept", "expert"}}, "", 1},
		{"ratio capped", progress.Progress{Points: 80}, "beginner", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := progress.Summarize(progress.DefaultCatalog, tt.progress)
			if s.TotalBadges != 3 {
				t.Errorf("TotalBadges = %d, want 3", s.TotalBadges)
			}
			gotNext := ""
			if s.NextBadge != nil {
				gotNext = s.NextBadge.ID
			}
			if gotNext != tt.wantNext {
				t.Errorf("NextBadge = %q, want %q", gotNext, tt.wantNext)
			}
			if s.NextBadgeRatio != tt.wantRatio {
				t.Errorf("NextBadgeRatio = %v, want %v", s.NextBadgeRatio, tt.wantRatio)
			}
		})
	}
}

func TestProgress_ReturnsCopy(t *testing.T) {
	s, _ := openMemory(t, nil, nil)
	s.CompleteTopic("mean")

	p := s.Progress()
	p.CompletedTopics[0] = "tampered"

	if s.Progress().CompletedTopics[0] != "mean" {
		t.Error("Progress() should not expose internal slices")
	}
}

func TestClose_FlushesPendingWrites(t *testing.T) {
	p := progress.NewMemoryPersister(nil)
	s := progress.Open(context.Background(), progress.Config{Persister: p})
	s.AddPoints(42)

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	var saved progress.Progress
	json.Unmarshal(p.Data(), &saved)
	if saved.Points != 42 {
		t.Errorf("saved points = %d, want 42", saved.Points)
	}
}

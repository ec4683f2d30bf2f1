package tutor_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/p-n-ai/statsquest/internal/ai"
	"github.com/p-n-ai/statsquest/internal/tutor"
)

const validQuestion = `{
	"question": "Which measure is most affected by outliers?",
	"options": ["Mean", "Median", "Mode", "Interquartile range"],
	"correctOptionIndex": 0,
	"explanation": "The mean uses every value, so extreme values pull it."
}`

// newGateway wires a gateway to mock, counting how often a provider is built.
func newGateway(mock *ai.MockProvider, key string) (*tutor.Gateway, *int) {
	built := 0
	g := tutor.New(tutor.Config{
		APIKey: func() string { return key },
		NewProvider: func(apiKey string) ai.Provider {
			built++
			return mock
		},
	})
	return g, &built
}

func TestGenerateQuizQuestion(t *testing.T) {
	mock := ai.NewMockProvider(validQuestion)
	g, _ := newGateway(mock, "test-key")

	q, err := g.GenerateQuizQuestion(context.Background(), "Mean, Median and Mode")
	if err != nil {
		t.Fatalf("GenerateQuizQuestion() error = %v", err)
	}
	if q.Question == "" || len(q.Options) != 4 || q.CorrectOptionIndex != 0 {
		t.Errorf("unexpected question: %+v", q)
	}

	req := mock.LastRequest()
	if req == nil {
		t.Fatal("no request recorded")
	}
	if req.Temperature != 0.8 {
		t.Errorf("Temperature = %v, want 0.8", req.Temperature)
	}
	if req.ResponseMIMEType != ai.MIMEJSON {
		t.Errorf("ResponseMIMEType = %q, want %q", req.ResponseMIMEType, ai.MIMEJSON)
	}
	if req.ResponseSchema == nil {
		t.Error("ResponseSchema should be set for quiz questions")
	}
	if req.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q, want gemini-2.5-flash", req.Model)
	}
	if !strings.Contains(req.Messages[0].Content, "Mean, Median and Mode") {
		t.Errorf("prompt does not mention topic: %q", req.Messages[0].Content)
	}
}

func TestGenerateQuizQuestion_CodeFence(t *testing.T) {
	mock := ai.NewMockProvider("```json\n" + validQuestion + "\n```")
	g, _ := newGateway(mock, "test-key")

	if _, err := g.GenerateQuizQuestion(context.Background(), "Mean"); err != nil {
		t.Fatalf("GenerateQuizQuestion() error = %v", err)
	}
}

func TestGenerateQuizQuestion_InvalidShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing index", `{"question":"Q?","options":["a","b","c","d"],"explanation":"e"}`},
		{"three options", `{"question":"Q?","options":["a","b","c"],"correctOptionIndex":0,"explanation":"e"}`},
		{"five options", `{"question":"Q?","options":["a","b","c","d","e"],"correctOptionIndex":0,"explanation":"e"}`},
		{"string index", `{"question":"Q?","options":["a","b","c","d"],"correctOptionIndex":"1","explanation":"e"}`},
		{"index out of range", `{"question":"Q?","options":["a","b","c","d"],"correctOptionIndex":4,"explanation":"e"}`},
		{"missing question", `{"options":["a","b","c","d"],"correctOptionIndex":1,"explanation":"e"}`},
		{"blank question", `{"question":"   ","options":["a","b","c","d"],"correctOptionIndex":1,"explanation":"e"}`},
		{"duplicate options", `{"question":"Q?","options":["Mean","mean","c","d"],"correctOptionIndex":1,"explanation":"e"}`},
		{"not json", `Sure! Here is a question...`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGateway(ai.NewMockProvider(tt.body), "test-key")

			q, err := g.GenerateQuizQuestion(context.Background(), "Mean")
			if err == nil {
				t.Fatalf("GenerateQuizQuestion() = %+v, want error", q)
			}
			if !errors.Is(err, tutor.ErrValidation) {
				t.Errorf("error kind = %v, want ErrValidation", tutor.Kind(err))
			}
			if err.Error() != tutor.OpQuizQuestion.Message() {
				t.Errorf("Error() = %q, want the collapsed question message", err.Error())
			}
			if q.Question != "" || q.Options != nil {
				t.Errorf("partial question leaked: %+v", q)
			}
		})
	}
}

func TestGateway_TransportError(t *testing.T) {
	mock := &ai.MockProvider{Err: context.DeadlineExceeded}
	g, _ := newGateway(mock, "test-key")

	_, err := g.GenerateTalkThrough(context.Background(), "Variance", "Variance measures spread.")
	if !errors.Is(err, tutor.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("underlying cause should stay reachable through Unwrap")
	}

	var gwErr *tutor.Error
	if !errors.As(err, &gwErr) || gwErr.Op != tutor.OpTalkThrough {
		t.Errorf("error = %#v, want *tutor.Error for talk-through", err)
	}
	if err.Error() != tutor.OpTalkThrough.Message() {
		t.Errorf("Error() = %q, want collapsed message", err.Error())
	}
}

func TestGateway_MissingCredential(t *testing.T) {
	ops := []struct {
		name string
		op   tutor.Op
		call func(g *tutor.Gateway) error
	}{
		{"quiz", tutor.OpQuizQuestion, func(g *tutor.Gateway) error {
			_, err := g.GenerateQuizQuestion(context.Background(), "Mean")
			return err
		}},
		{"talk-through", tutor.OpTalkThrough, func(g *tutor.Gateway) error {
			_, err := g.GenerateTalkThrough(context.Background(), "Mean", "text")
			return err
		}},
		{"hint", tutor.OpHint, func(g *tutor.Gateway) error {
			_, err := g.GenerateHint(context.Background(), "Q?", []string{"a", "b", "c", "d"})
			return err
		}},
	}

	for _, key := range []string{"", "   "} {
		for _, tt := range ops {
			t.Run(tt.name, func(t *testing.T) {
				mock := ai.NewMockProvider(validQuestion)
				g, built := newGateway(mock, key)

				err := tt.call(g)
				if !errors.Is(err, tutor.ErrConfiguration) {
					t.Fatalf("error = %v, want ErrConfiguration", err)
				}
				if err.Error() != tt.op.Message() {
					t.Errorf("Error() = %q, want %q", err.Error(), tt.op.Message())
				}
				if *built != 0 || mock.Calls() != 0 {
					t.Errorf("provider built %d times, %d calls; want none", *built, mock.Calls())
				}
			})
		}
	}
}

func TestGateway_NilKeyFunc(t *testing.T) {
	g := tutor.New(tutor.Config{})
	_, err := g.GenerateHint(context.Background(), "Q?", nil)
	if !errors.Is(err, tutor.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestGateway_KeyResolvedPerCall(t *testing.T) {
	key := ""
	mock := ai.NewMockProvider("A hint.")
	var seen []string
	g := tutor.New(tutor.Config{
		APIKey: func() string { return key },
		NewProvider: func(apiKey string) ai.Provider {
			seen = append(seen, apiKey)
			return mock
		},
	})

	if _, err := g.GenerateHint(context.Background(), "Q?", []string{"a"}); err == nil {
		t.Fatal("first call should fail without a key")
	}

	key = "rotated-key"
	if _, err := g.GenerateHint(context.Background(), "Q?", []string{"a"}); err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if len(seen) != 1 || seen[0] != "rotated-key" {
		t.Errorf("provider keys = %v, want [rotated-key]", seen)
	}
}

func TestGenerateTalkThrough_Request(t *testing.T) {
	mock := ai.NewMockProvider("Think of variance like...")
	g, _ := newGateway(mock, "test-key")

	text, err := g.GenerateTalkThrough(context.Background(), "Variance", "Variance is the mean squared deviation.")
	if err != nil {
		t.Fatalf("GenerateTalkThrough() error = %v", err)
	}
	if text != "Think of variance like..." {
		t.Errorf("text = %q", text)
	}

	req := mock.LastRequest()
	if req.Temperature != 0.7 || req.MaxTokens != 250 {
		t.Errorf("temperature/maxTokens = %v/%d, want 0.7/250", req.Temperature, req.MaxTokens)
	}
	if req.ResponseSchema != nil || req.ResponseMIMEType != "" {
		t.Error("talk-through must not request structured output")
	}
	if !strings.Contains(req.Messages[0].Content, "mean squared deviation") {
		t.Error("prompt should include the topic text as context")
	}
}

func TestGenerateHint_Request(t *testing.T) {
	mock := ai.NewMockProvider("Think about what happens with extreme values.")
	g, _ := newGateway(mock, "test-key")

	_, err := g.GenerateHint(context.Background(), "Which is robust?", []string{"Mean", "Median", "Range", "Max"})
	if err != nil {
		t.Fatalf("GenerateHint() error = %v", err)
	}

	req := mock.LastRequest()
	if req.Temperature != 0.5 || req.MaxTokens != 50 {
		t.Errorf("temperature/maxTokens = %v/%d, want 0.5/50", req.Temperature, req.MaxTokens)
	}
	if !strings.Contains(req.Messages[0].Content, "Mean, Median, Range, Max") {
		t.Errorf("prompt should list options: %q", req.Messages[0].Content)
	}
}

func TestKind_NonGatewayError(t *testing.T) {
	if tutor.Kind(errors.New("other")) != nil {
		t.Error("Kind() should be nil for unrelated errors")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		err       error
		wantErr   bool
		wantBuilt int
	}{
		{"no credential skips the probe", "", nil, false, 0},
		{"healthy provider", "test-key", nil, false, 1},
		{"unhealthy provider", "test-key", errors.New("status 403"), true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &ai.MockProvider{Err: tt.err}
			g, built := newGateway(mock, tt.key)

			err := g.HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if *built != tt.wantBuilt {
				t.Errorf("providers built = %d, want %d", *built, tt.wantBuilt)
			}
		})
	}
}

type requestIDKey struct{}

// ctxRecorder records the request id found on the context of every log record.
type ctxRecorder struct {
	mu  sync.Mutex
	ids []any
}

func (h *ctxRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *ctxRecorder) Handle(ctx context.Context, _ slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, ctx.Value(requestIDKey{}))
	return nil
}

func (h *ctxRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *ctxRecorder) WithGroup(string) slog.Handler { return h }

func TestFailureLogCarriesCallerContext(t *testing.T) {
	rec := &ctxRecorder{}
	prev := slog.Default()
	slog.SetDefault(slog.New(rec))
	t.Cleanup(func() { slog.SetDefault(prev) })

	g, _ := newGateway(ai.NewMockProvider("unused"), "")
	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-42")
	if _, err := g.GenerateHint(ctx, "Q?", []string{"a", "b"}); err == nil {
		t.Fatal("expected configuration error")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !slices.Contains(rec.ids, any("req-42")) {
		t.Errorf("logged contexts carried ids %v, want req-42", rec.ids)
	}
}

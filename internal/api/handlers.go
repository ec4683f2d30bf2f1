package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/statsquest/internal/chart"
	"github.com/p-n-ai/statsquest/internal/curriculum"
	"github.com/p-n-ai/statsquest/internal/quiz"
	"github.com/p-n-ai/statsquest/internal/report"
)

const maxBodyBytes = 1 << 10

type unitView struct {
	curriculum.Unit
	Completion curriculum.UnitCompletion `json:"completion"`
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	units := s.deps.Curriculum.Units()
	completion := s.deps.Curriculum.Completion(s.deps.Progress.Progress().CompletedTopics)

	out := make([]unitView, len(units))
	for i, u := range units {
		out[i] = unitView{Unit: u, Completion: completion[i]}
	}
	respondJSON(w, http.StatusOK, out)
}

type topicView struct {
	Topic      curriculum.Topic `json:"topic"`
	UnitNumber int              `json:"unitNumber"`
	UnitTitle  string           `json:"unitTitle"`
	Completed  bool             `json:"completed"`
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	topic, ok := s.topic(w, r)
	if !ok {
		return
	}
	unit, _ := s.deps.Curriculum.UnitOf(topic.ID)
	respondJSON(w, http.StatusOK, topicView{
		Topic:      topic,
		UnitNumber: unit.Number,
		UnitTitle:  unit.Title,
		Completed:  s.deps.Progress.Progress().HasCompleted(topic.ID),
	})
}

// topic resolves the {id} path value, writing 404 when it is unknown.
func (s *Server) topic(w http.ResponseWriter, r *http.Request) (curriculum.Topic, bool) {
	id := r.PathValue("id")
	topic, ok := s.deps.Curriculum.Topic(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("topic %q not found", id))
	}
	return topic, ok
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	topic, ok := s.topic(w, r)
	if !ok {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := s.explains.Do(topic.ID, func() (any, error) {
		return s.deps.Tutor.GenerateTalkThrough(ctx, topic.Title, topic.Content)
	})
	if err != nil {
		respondGatewayError(w, err, false)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": v.(string)})
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	topic, ok := s.topic(w, r)
	if !ok {
		return
	}
	issued, err := s.deps.Quiz.Next(r.Context(), topic)
	if err != nil {
		respondGatewayError(w, err, true)
		return
	}
	respondJSON(w, http.StatusOK, issued)
}

func (s *Server) handleFinishQuiz(w http.ResponseWriter, r *http.Request) {
	topic, ok := s.topic(w, r)
	if !ok {
		return
	}
	u, err := s.deps.Quiz.Finish(topic.ID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	topic, ok := s.topic(w, r)
	if !ok {
		return
	}
	u, err := s.deps.Progress.CompleteTopic(topic.ID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, u)
}

type answerRequest struct {
	Choice *int `json:"choice"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Choice == nil {
		respondError(w, http.StatusBadRequest, "choice is required")
		return
	}

	res, err := s.deps.Quiz.Answer(r.PathValue("qid"), *req.Choice)
	if err != nil {
		respondQuizError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	hint, err := s.deps.Quiz.Hint(r.Context(), r.PathValue("qid"))
	if err != nil {
		respondQuizError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"hint": hint})
}

func respondQuizError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, quiz.ErrAlreadyAnswered):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, quiz.ErrInvalidChoice):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondGatewayError(w, err, false)
	}
}

type curveParams struct {
	mean, stdDev float64
	steps        int
}

func parseCurveParams(r *http.Request) (curveParams, error) {
	p := curveParams{mean: 0, stdDev: 1}
	q := r.URL.Query()

	var err error
	if v := q.Get("mean"); v != "" {
		if p.mean, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("invalid mean %q", v)
		}
	}
	if v := q.Get("sd"); v != "" {
		if p.stdDev, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("invalid sd %q", v)
		}
	}
	if v := q.Get("steps"); v != "" {
		if p.steps, err = strconv.Atoi(v); err != nil {
			return p, fmt.Errorf("invalid steps %q", v)
		}
	}
	return p, nil
}

func (s *Server) handleNormalChart(w http.ResponseWriter, r *http.Request) {
	p, err := parseCurveParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := chart.NormalCurve(p.mean, p.stdDev, p.steps)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"mean":   p.mean,
		"stdDev": p.stdDev,
		"points": points,
	})
}

func (s *Server) handleNormalChartPNG(w http.ResponseWriter, r *http.Request) {
	p, err := parseCurveParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := chart.NormalCurve(p.mean, p.stdDev, p.steps)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := chart.RenderPNG(w, points, p.mean, 0, 0); err != nil {
		slog.Error("render chart failed", "error", err)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Progress.Summary())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, err := report.Build(s.deps.Curriculum.Units(), s.deps.Progress.Progress(), s.deps.Progress.Catalog())
	if err != nil {
		slog.Error("build report failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not build report")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="statsquest-progress.xlsx"`)
	if err := f.Write(w); err != nil {
		slog.Error("write report failed", "error", err)
	}
}

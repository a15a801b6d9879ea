package screenplays

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

type EvaluateScreenplayJobArgs struct {
	ScreenplayID uuid.UUID       `json:"screenplay_id"`
	Title        string          `json:"title"`
	Logline      string          `json:"logline"`
	Content      json.RawMessage `json:"content"`
}

func (EvaluateScreenplayJobArgs) Kind() string { return "evaluate_screenplay" }

// Evaluator is the contract the worker needs to record scoring outcomes.
type Evaluator interface {
	MarkEvaluating(ctx context.Context, id uuid.UUID) error
	RecordEvaluation(ctx context.Context, id uuid.UUID, score, confidence float64) error
}

// EvaluateScreenplayWorker sends the screenplay to the external scoring
// service and records the verdict.
type EvaluateScreenplayWorker struct {
	river.WorkerDefaults[EvaluateScreenplayJobArgs]
	evaluator  Evaluator
	scoringURL string
	httpClient *http.Client
}

func NewEvaluateScreenplayWorker(evaluator Evaluator) *EvaluateScreenplayWorker {
	return &EvaluateScreenplayWorker{
		evaluator:  evaluator,
		scoringURL: os.Getenv("AI_SCORING_URL"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type scoringResponse struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

func (w *EvaluateScreenplayWorker) Work(ctx context.Context, job *river.Job[EvaluateScreenplayJobArgs]) error {
	args := job.Args
	if w.scoringURL == "" {
		return fmt.Errorf("AI_SCORING_URL not configured, cannot evaluate screenplay %s", args.ScreenplayID)
	}

	if err := w.evaluator.MarkEvaluating(ctx, args.ScreenplayID); err != nil {
		return fmt.Errorf("mark screenplay evaluating: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"title":   args.Title,
		"logline": args.Logline,
		"content": args.Content,
	})
	if err != nil {
		return fmt.Errorf("marshal scoring request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.scoringURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling scoring service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	var verdict scoringResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return fmt.Errorf("scoring service returned invalid JSON: %w", err)
	}

	if err := w.evaluator.RecordEvaluation(ctx, args.ScreenplayID, verdict.Score, verdict.Confidence); err != nil {
		return fmt.Errorf("record screenplay evaluation: %w", err)
	}
	return nil
}

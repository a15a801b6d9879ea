package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/lumiere-studio/backend/internal/models"
)

// NotifyJobArgs carries a lifecycle event to the webhook worker.
type NotifyJobArgs struct {
	Event  string          `json:"event"`
	RefID  uuid.UUID       `json:"ref_id"`
	UserID uuid.UUID       `json:"user_id"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

func (NotifyJobArgs) Kind() string { return "notify" }

// NotifyWorker delivers lifecycle events to the configured webhook. When no
// webhook is configured the job completes without side effects.
type NotifyWorker struct {
	river.WorkerDefaults[NotifyJobArgs]
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

func NewNotifyWorker(log *slog.Logger) *NotifyWorker {
	if log == nil {
		log = slog.Default()
	}
	return &NotifyWorker{
		webhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[NotifyJobArgs]) error {
	args := job.Args
	if w.webhookURL == "" {
		w.log.Debug("notify webhook not configured, dropping event", "event", args.Event)
		return nil
	}

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal notify payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s notification: %w", args.Event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook returned status %d for %s", resp.StatusCode, args.Event)
	}
	return nil
}

// JobInserter is the slice of river.Client the enqueue closures need.
type JobInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// CollabEnqueuer returns a closure that records a collab lifecycle event in
// the same transaction as the state change.
func CollabEnqueuer(client JobInserter) func(ctx context.Context, tx pgx.Tx, event string, c *models.CollabRequest) error {
	return func(ctx context.Context, tx pgx.Tx, event string, c *models.CollabRequest) error {
		detail, err := json.Marshal(map[string]any{
			"type":          c.Type,
			"escrow_tokens": c.EscrowTokens,
		})
		if err != nil {
			return err
		}
		_, err = client.InsertTx(ctx, tx, NotifyJobArgs{
			Event:  event,
			RefID:  c.ID,
			UserID: c.ToUserID,
			Detail: detail,
		}, nil)
		return err
	}
}

// OrderEnqueuer returns a closure that records an order lifecycle event in
// the same transaction as the state change.
func OrderEnqueuer(client JobInserter) func(ctx context.Context, tx pgx.Tx, event string, o *models.Order) error {
	return func(ctx context.Context, tx pgx.Tx, event string, o *models.Order) error {
		recipient := o.ClientID
		if o.CreatorID != nil {
			recipient = *o.CreatorID
		}
		detail, err := json.Marshal(map[string]any{
			"title":        o.Title,
			"price_tokens": o.PriceTokens,
			"status":       o.Status,
		})
		if err != nil {
			return err
		}
		_, err = client.InsertTx(ctx, tx, NotifyJobArgs{
			Event:  event,
			RefID:  o.ID,
			UserID: recipient,
			Detail: detail,
		}, nil)
		return err
	}
}

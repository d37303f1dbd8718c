package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notification carries the context of a degraded scrape run.
type Notification struct {
	RunID          string
	StartedAt      time.Time
	Failed         bool
	OKEntities     int
	StaleEntities  int
	FailedEntities int
	TotalRecords   int
	FailedSources  []string
	StoreError     string
}

// Notifier delivers run alerts.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered message through the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("run_id", note.RunID).
		Int("failed_sources", len(note.FailedSources)).
		Msg("alert sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	if note.Failed {
		builder.WriteString("[Mejor Inversion] Scrape run FAILED\n")
	} else {
		builder.WriteString("[Mejor Inversion] Scrape run degraded\n")
	}
	builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	builder.WriteString(fmt.Sprintf("Started: %s UTC\n", note.StartedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Sources: %d ok / %d stale / %d failed\n",
		note.OKEntities, note.StaleEntities, note.FailedEntities))
	builder.WriteString(fmt.Sprintf("Records: %d\n", note.TotalRecords))
	if len(note.FailedSources) > 0 {
		builder.WriteString(fmt.Sprintf("Failed: %s\n", strings.Join(note.FailedSources, ", ")))
	}
	if note.StoreError != "" {
		builder.WriteString(fmt.Sprintf("Store error: %s\n", note.StoreError))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)

// Package notify sends webhook notifications for notable mining events.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tari-project/graxil/internal/config"
	"github.com/tari-project/graxil/internal/util"
)

// Retry configuration
const (
	maxRetries     = 3
	retryBaseDelay = 2 * time.Second
)

// Notifier posts Discord-shaped webhook messages for high-difficulty shares
// and pool reconnects. All sends run in the background; failures never
// affect mining.
type Notifier struct {
	cfg    *config.WebhookConfig
	client *http.Client
}

// NewNotifier creates a notifier from the webhook configuration
func NewNotifier(cfg *config.WebhookConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// embed is a Discord-compatible embed object
type embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

// NotifyHighDifficultyShare fires when a found share's difficulty crosses
// the configured threshold.
func (n *Notifier) NotifyHighDifficultyShare(threadID int, difficulty, target uint64) {
	if !n.cfg.Enabled || difficulty < n.cfg.DifficultyThreshold {
		return
	}

	go n.post(payload{
		Embeds: []embed{{
			Title: "High difficulty share",
			Color: 0x2ecc71,
			Fields: []field{
				{Name: "Thread", Value: fmt.Sprintf("%d", threadID), Inline: true},
				{Name: "Difficulty", Value: util.FormatNumber(difficulty), Inline: true},
				{Name: "Target", Value: util.FormatNumber(target), Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// NotifyReconnect fires after the session re-establishes a dropped pool
// connection.
func (n *Notifier) NotifyReconnect(poolAddress string) {
	if !n.cfg.Enabled {
		return
	}

	go n.post(payload{
		Embeds: []embed{{
			Title:       "Pool reconnected",
			Description: fmt.Sprintf("Re-established connection to %s", poolAddress),
			Color:       0xf39c12,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// post delivers a payload with exponential backoff retries
func (n *Notifier) post(p payload) {
	body, err := json.Marshal(p)
	if err != nil {
		util.Errorf("Failed to encode webhook payload: %v", err)
		return
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBaseDelay * time.Duration(1<<(attempt-1)))
		}

		resp, err := n.client.Post(n.cfg.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			util.Warnf("Webhook delivery failed (attempt %d/%d): %v", attempt+1, maxRetries, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}
		util.Warnf("Webhook returned status %d (attempt %d/%d)", resp.StatusCode, attempt+1, maxRetries)
	}
}

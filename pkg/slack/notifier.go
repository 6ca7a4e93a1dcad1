// Package slack posts campaign notifications to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Stats summarizes a finished campaign for the completion message.
type Stats struct {
	TotalLeads   int
	SuccessCount int
	FailureCount int
	Duration     string // optional, e.g. "12 min"
}

// Client posts block-kit messages to a Slack incoming webhook. An empty
// webhook URL disables delivery; calls then log and return nil.
type Client struct {
	webhookURL string
	http       *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a webhook client.
func New(webhookURL string, opts ...Option) *Client {
	c := &Client{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 5 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Fields   []text `json:"fields,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// NotifyCampaignComplete posts the completion summary.
func (c *Client) NotifyCampaignComplete(ctx context.Context, campaignName, runID string, stats Stats) error {
	successRate := "0"
	if stats.TotalLeads > 0 {
		successRate = fmt.Sprintf("%.1f", float64(stats.SuccessCount)/float64(stats.TotalLeads)*100)
	}

	footer := fmt.Sprintf("Run ID: `%s`", runID)
	if stats.Duration != "" {
		footer += " • Duration: " + stats.Duration
	}

	return c.post(ctx, message{
		Text: "Campaign Complete: " + campaignName,
		Blocks: []block{
			{
				Type: "header",
				Text: &text{Type: "plain_text", Text: "✅ Campaign Complete: " + campaignName, Emoji: true},
			},
			{
				Type: "section",
				Fields: []text{
					{Type: "mrkdwn", Text: fmt.Sprintf("*Total Leads:*\n%d", stats.TotalLeads)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Successful:*\n%d ✅", stats.SuccessCount)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Failed:*\n%d ❌", stats.FailureCount)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Success Rate:*\n%s%%", successRate)},
				},
			},
			{
				Type:     "context",
				Elements: []text{{Type: "mrkdwn", Text: footer}},
			},
		},
	})
}

// NotifyCampaignFailed posts the failure message with the error body.
func (c *Client) NotifyCampaignFailed(ctx context.Context, campaignName, runID, errMessage string) error {
	return c.post(ctx, message{
		Text: "Campaign Failed: " + campaignName,
		Blocks: []block{
			{
				Type: "header",
				Text: &text{Type: "plain_text", Text: "❌ Campaign Failed: " + campaignName, Emoji: true},
			},
			{
				Type: "section",
				Text: &text{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n```%s```", errMessage)},
			},
			{
				Type:     "context",
				Elements: []text{{Type: "mrkdwn", Text: fmt.Sprintf("Run ID: `%s`", runID)}},
			},
		},
	})
}

func (c *Client) post(ctx context.Context, msg message) error {
	if c.webhookURL == "" {
		zap.L().Debug("slack webhook not configured, skipping notification")
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "slack: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "slack: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "slack: send webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return eris.Errorf("slack: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Posts escalations to a Slack channel through an incoming webhook, which must already be configured in the workspace.
type SlackNotifier struct {
	SlackWebhookURL string
	// optional; defaults to http.DefaultClient
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

type slackWebhookBody struct {
	Text string `json:"text"`
}

func (n *SlackNotifier) SendEscalation(ctx context.Context, chatID, userID int64, name string, out *Outcome) error {
	body, err := json.Marshal(slackWebhookBody{Text: escalationText(chatID, userID, name, out)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	// slack answers a literal "ok" on success
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK || string(reply) != "ok" {
		return fmt.Errorf("slack webhook: status=%d body=%q", resp.StatusCode, reply)
	}
	return nil
}

func escalationText(chatID, userID int64, name string, out *Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Warden escalation: `%s` in chat `%d`\n", out.Escalated, chatID)
	fmt.Fprintf(&b, "member: %s (`%d`), strikes: %d\n", name, userID, out.StrikeCount)
	if out.Rule != "" {
		fmt.Fprintf(&b, "last violation: `%s`\n", out.Rule)
	}
	if out.MutedUntil != nil {
		fmt.Fprintf(&b, "muted until %s\n", out.MutedUntil.UTC().Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}

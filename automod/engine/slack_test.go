package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlackNotifier(t *testing.T) {
	assert := assert.New(t)

	var got slackWebhookBody
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("application/json", r.Header.Get("Content-Type"))
		assert.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	until := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	n := &SlackNotifier{SlackWebhookURL: srv.URL}
	out := &Outcome{Rule: "nsfw-keyword", StrikeCount: 3, Escalated: "mute", MutedUntil: &until}
	assert.NoError(n.SendEscalation(context.Background(), TestChatID, 42, "@bob", out))
	assert.Contains(got.Text, "`mute` in chat `-100123`")
	assert.Contains(got.Text, "@bob (`42`), strikes: 3")
	assert.Contains(got.Text, "`nsfw-keyword`")
	assert.Contains(got.Text, "muted until 2024-03-01 13:00 UTC")

	status = http.StatusForbidden
	assert.Error(n.SendEscalation(context.Background(), TestChatID, 42, "@bob", out))
}

package policy

import (
	"testing"

	"github.com/iris-chat/warden/automod/moderr"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	assert := assert.New(t)

	p := Default()
	assert.NoError(p.Validate())
	assert.True(p.AutoModEnabled)
	assert.Equal(3, p.StrikeLimit)
	assert.Equal(ActionBan, p.EscalationAction)
	assert.Equal(5, p.FloodThreshold)
	assert.Equal(5, p.FloodTimeframeSeconds)
	assert.Equal(ActionMute, p.FloodAction)
}

func TestPolicyValidate(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		field  string
		modify func(p *ChatPolicy)
	}{
		{"strike_limit", func(p *ChatPolicy) { p.StrikeLimit = 0 }},
		{"escalation_action", func(p *ChatPolicy) { p.EscalationAction = "explode" }},
		{"escalation_mute_minutes", func(p *ChatPolicy) { p.EscalationMuteMinutes = -1 }},
		{"flood_threshold", func(p *ChatPolicy) { p.FloodThreshold = 0 }},
		{"flood_timeframe_seconds", func(p *ChatPolicy) { p.FloodTimeframeSeconds = 0 }},
		{"flood_action", func(p *ChatPolicy) { p.FloodAction = ActionNone }},
		{"retention_days", func(p *ChatPolicy) { p.RetentionDays = 0 }},
	}
	for _, f := range fixtures {
		p := Default()
		f.modify(&p)
		err := p.Validate()
		ve, ok := err.(*moderr.ValidationError)
		if assert.True(ok, f.field) {
			assert.Equal(f.field, ve.Field)
		}
	}

	p := Default()
	p.FloodThreshold = 1
	p.StrikeLimit = 1
	assert.NoError(p.Validate())
}


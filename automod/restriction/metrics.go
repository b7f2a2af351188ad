package restriction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var autoUnlockCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_auto_unlock_timers",
	Help: "Number of chat auto-unlock timers fired, by outcome",
}, []string{"outcome"})

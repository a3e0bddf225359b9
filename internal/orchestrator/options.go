package orchestrator

import (
	"time"

	"github.com/replygate/replygate/internal/config"
)

// Options are the orchestration knobs the guard filter and the debounce
// scheduler consult. A snapshot is swapped in atomically on config reload,
// so in-progress cycles keep the values they started with.
type Options struct {
	Enabled  bool
	Debounce time.Duration
	Cooldown time.Duration
	Ignore   map[string]struct{}
}

// OptionsFromConfig builds an Options snapshot from the reply config section.
func OptionsFromConfig(rc config.ReplyConfig) Options {
	return Options{
		Enabled:  rc.IsEnabled(),
		Debounce: rc.DebounceDuration(),
		Cooldown: rc.CooldownDuration(),
		Ignore:   rc.IgnoreSet(),
	}
}

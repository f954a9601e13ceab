package ratelimit

import (
	"time"

	"github.com/wagerdeck/wagerdeck-bot/pkg/config"
)

// Session-opening commands get the tighter start window; every other builder
// input falls under the per-user default.
var startCommands = map[string]struct{}{
	"/bet":    {},
	"/parlay": {},
	"/browse": {},
}

// Rules resolves which limit applies to a given user and command.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// LimitFor returns the limit and window applicable to the command. A zero
// limit means the command is unthrottled.
func (r *Rules) LimitFor(command string) (int, time.Duration) {
	if _, ok := startCommands[command]; ok && r.config.StartLimit > 0 {
		return r.config.StartLimit, r.config.StartWindow
	}

	return r.config.PerUserLimit, r.config.PerUserWindow
}

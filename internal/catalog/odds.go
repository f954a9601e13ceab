package catalog

import (
	"strconv"
	"strings"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
)

// ParseOdds parses a raw odds string. A leading sign selects the American
// scale and requires a whole number; an unsigned number is read on the
// decimal scale and must exceed 1.0. Each rejection names its own reason so
// the user knows what to fix.
func ParseOdds(raw string) (domain.Odds, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.Odds{}, invalid("odds", "a value is required")
	}

	if strings.HasPrefix(trimmed, "+") || strings.HasPrefix(trimmed, "-") {
		value, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return domain.Odds{}, invalid("odds", "a signed line must be a whole number, like -110 or +150")
		}
		if value == 0 {
			return domain.Odds{}, invalid("odds", "a signed line of zero is not a valid price")
		}

		return domain.Odds{Format: domain.OddsAmerican, Value: float64(value)}, nil
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return domain.Odds{}, invalid("odds", "not a number; send decimal odds like 2.5 or a signed line like -110")
	}
	if value <= 1.0 {
		return domain.Odds{}, invalid("odds", "decimal odds must be greater than 1.0")
	}

	return domain.Odds{Format: domain.OddsDecimal, Value: value}, nil
}

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
)

// FormatOdds renders an odds value on its own scale.
func FormatOdds(o domain.Odds) string {
	if o.Format == domain.OddsAmerican {
		return fmt.Sprintf("%+d", int64(o.Value))
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}

// Summary renders the full human-readable slip for the confirm step.
func Summary(d *domain.Draft, mode Mode) string {
	var b strings.Builder

	if mode == ModeParlay {
		fmt.Fprintf(&b, "Parlay — %d legs\n", len(d.Legs))
		b.WriteString(legSummary(d.Legs))
	} else {
		fmt.Fprintf(&b, "%s | %s\n", d.Get(domain.FieldCategory), d.Get(domain.FieldLineType))
		fmt.Fprintf(&b, "%s vs %s\n", d.Get(domain.FieldSubject), d.Get(domain.FieldCounterpart))
		fmt.Fprintf(&b, "%s @ %s\n", d.Get(domain.FieldDetail), formatDraftOdds(d))
	}

	if stake := d.Get(domain.FieldStake); stake != "" {
		fmt.Fprintf(&b, "Stake: %su\n", stake)
	}

	return strings.TrimRight(b.String(), "\n")
}

func legSummary(legs []domain.Leg) string {
	if len(legs) == 0 {
		return "(no legs yet)"
	}

	var b strings.Builder
	for i, leg := range legs {
		fmt.Fprintf(&b, "%d. %s vs %s — %s @ %s\n",
			i+1, leg.Label, leg.Counterpart, leg.Detail, FormatOdds(leg.Odds))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatDraftOdds(d *domain.Draft) string {
	value, err := strconv.ParseFloat(d.Get(domain.FieldOddsValue), 64)
	if err != nil {
		return d.Get(domain.FieldOddsValue)
	}

	return FormatOdds(domain.Odds{
		Format: domain.OddsFormat(d.Get(domain.FieldOddsFormat)),
		Value:  value,
	})
}

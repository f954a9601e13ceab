package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
)

func TestParseOdds(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantFormat domain.OddsFormat
		wantValue  float64
		wantErr    string
	}{
		{
			name:       "negative american line",
			raw:        "-110",
			wantFormat: domain.OddsAmerican,
			wantValue:  -110,
		},
		{
			name:       "positive american line",
			raw:        "+150",
			wantFormat: domain.OddsAmerican,
			wantValue:  150,
		},
		{
			name:       "decimal odds",
			raw:        "2.5",
			wantFormat: domain.OddsDecimal,
			wantValue:  2.5,
		},
		{
			name:       "whitespace is trimmed",
			raw:        "  +200 ",
			wantFormat: domain.OddsAmerican,
			wantValue:  200,
		},
		{
			name:    "decimal exactly one is rejected",
			raw:     "1.0",
			wantErr: "greater than 1.0",
		},
		{
			name:    "decimal below one is rejected",
			raw:     "0.5",
			wantErr: "greater than 1.0",
		},
		{
			name:    "unsigned zero routes to decimal and is rejected",
			raw:     "0",
			wantErr: "greater than 1.0",
		},
		{
			name:    "signed zero is rejected",
			raw:     "+0",
			wantErr: "zero",
		},
		{
			name:    "signed fraction is rejected",
			raw:     "-110.5",
			wantErr: "whole number",
		},
		{
			name:    "non-numeric is rejected",
			raw:     "abc",
			wantErr: "not a number",
		},
		{
			name:    "empty is rejected",
			raw:     "   ",
			wantErr: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			odds, err := ParseOdds(tt.raw)

			if tt.wantErr != "" {
				require.Error(t, err)
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.Msg, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, odds.Format)
			assert.Equal(t, tt.wantValue, odds.Value)
		})
	}
}

func TestFormatOdds(t *testing.T) {
	assert.Equal(t, "-110", FormatOdds(domain.Odds{Format: domain.OddsAmerican, Value: -110}))
	assert.Equal(t, "+150", FormatOdds(domain.Odds{Format: domain.OddsAmerican, Value: 150}))
	assert.Equal(t, "2.5", FormatOdds(domain.Odds{Format: domain.OddsDecimal, Value: 2.5}))
}

package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Lookup(ctx context.Context, category string, scopeID int64, limit int) ([]domain.Item, error) {
	args := m.Called(ctx, category, scopeID, limit)
	items, _ := args.Get(0).([]domain.Item)
	return items, args.Error(1)
}

func (m *mockDirectory) Remember(ctx context.Context, item domain.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCuration() Curation {
	return Curation{
		Categories:       []string{"Soccer", "Tennis"},
		Destinations:     []Destination{{Label: "Main", ChannelID: -100123}},
		StakeLadder:      []float64{0.5, 1, 2},
		MaxSelectOptions: 24,
	}
}

func newTestCatalog(dir Directory) *Catalog {
	return New(dir, testCuration(), testLogger())
}

func choice(v string) Input { return Input{Kind: InputChoice, Value: v} }
func text(v string) Input   { return Input{Kind: InputText, Value: v} }

func TestCategoryStep(t *testing.T) {
	ctx := context.Background()

	t.Run("spec offers curated categories plus the Other sentinel", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		spec, err := c.Spec(ctx, ModeSingle, StepCategory, d)
		require.NoError(t, err)

		require.Len(t, spec.Options, 3)
		assert.Equal(t, OtherCategory, spec.Options[2].Value)
		assert.Equal(t, PromptChoice, spec.Kind)
	})

	t.Run("parlay title counts the upcoming leg", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()
		d.Legs = []domain.Leg{{Label: "A"}, {Label: "B"}}

		spec, err := c.Spec(ctx, ModeParlay, StepCategory, d)
		require.NoError(t, err)
		assert.Contains(t, spec.Title, "leg 3")
	})

	t.Run("rejects a category outside the offered list", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		_, err := c.Apply(ctx, ModeSingle, StepCategory, d, choice("Curling"))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Empty(t, d.Get(domain.FieldCategory))
	})

	t.Run("accepts the Other sentinel", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		out, err := c.Apply(ctx, ModeSingle, StepCategory, d, choice(OtherCategory))
		require.NoError(t, err)
		assert.Equal(t, StepLineType, out.Next)
		assert.Equal(t, OtherCategory, d.Get(domain.FieldCategory))
	})

	t.Run("hot-reloaded curation applies to the next input", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		_, err := c.Apply(ctx, ModeSingle, StepCategory, d, choice("Darts"))
		require.Error(t, err)

		cur := testCuration()
		cur.Categories = append(cur.Categories, "Darts")
		c.UpdateCuration(cur)

		out, err := c.Apply(ctx, ModeSingle, StepCategory, d, choice("Darts"))
		require.NoError(t, err)
		assert.Equal(t, StepLineType, out.Next)
	})
}

func TestLineTypeBranching(t *testing.T) {
	ctx := context.Background()

	seed := func() *domain.Draft {
		d := domain.NewDraft()
		d.Set(domain.FieldCategory, "Soccer")
		d.Set(domain.FieldScopeID, "77")
		return d
	}

	t.Run("eligible items branch to selection", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Lookup", mock.Anything, "Soccer", int64(77), 24).
			Return([]domain.Item{{ID: "m1", Label: "United vs City", Category: "Soccer"}}, nil).Once()

		c := newTestCatalog(dir)
		d := seed()

		out, err := c.Apply(ctx, ModeSingle, StepLineType, d, choice(lineTypeEvent))
		require.NoError(t, err)
		assert.Equal(t, StepSelection, out.Next)
		require.Len(t, d.Items, 1)
		dir.AssertExpectations(t)
	})

	t.Run("empty directory branches to manual entry", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Lookup", mock.Anything, "Soccer", int64(77), 24).
			Return([]domain.Item(nil), nil).Once()

		c := newTestCatalog(dir)
		d := seed()

		out, err := c.Apply(ctx, ModeSingle, StepLineType, d, choice(lineTypeParticipant))
		require.NoError(t, err)
		assert.Equal(t, StepDetails, out.Next)
		assert.Equal(t, domain.ManualSourceRef, d.Get(domain.FieldSourceRef))
	})

	t.Run("lookup failure degrades to manual entry", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Lookup", mock.Anything, "Soccer", int64(77), 24).
			Return([]domain.Item(nil), errors.New("directory down")).Once()

		c := newTestCatalog(dir)
		d := seed()

		out, err := c.Apply(ctx, ModeSingle, StepLineType, d, choice(lineTypeEvent))
		require.NoError(t, err)
		assert.Equal(t, StepDetails, out.Next)
		assert.Equal(t, domain.ManualSourceRef, d.Get(domain.FieldSourceRef))
	})

	t.Run("concluded items are never offered", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Lookup", mock.Anything, "Soccer", int64(77), 24).
			Return([]domain.Item{
				{ID: "done", Label: "Finished", Concluded: true},
				{ID: "open", Label: "Open"},
			}, nil).Once()

		c := newTestCatalog(dir)
		d := seed()

		_, err := c.Apply(ctx, ModeSingle, StepLineType, d, choice(lineTypeEvent))
		require.NoError(t, err)
		require.Len(t, d.Items, 1)
		assert.Equal(t, "open", d.Items[0].ID)
	})

	t.Run("rejects unknown line kinds", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		_, err := c.Apply(ctx, ModeSingle, StepLineType, d, choice("spread"))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestSelectionStep(t *testing.T) {
	ctx := context.Background()

	seed := func() *domain.Draft {
		d := domain.NewDraft()
		d.Set(domain.FieldCategory, "Soccer")
		d.Items = []domain.Item{{ID: "m1", Label: "United vs City", Counterpart: "City", Category: "Soccer"}}
		return d
	}

	t.Run("picking an item copies it into the draft and remembers it", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Remember", mock.Anything, mock.MatchedBy(func(item domain.Item) bool {
			return item.ID == "m1"
		})).Return(nil).Once()

		c := newTestCatalog(dir)
		d := seed()

		out, err := c.Apply(ctx, ModeSingle, StepSelection, d, choice("m1"))
		require.NoError(t, err)
		assert.Equal(t, StepDetails, out.Next)
		assert.Equal(t, "m1", d.Get(domain.FieldSourceRef))
		assert.Equal(t, "United vs City", d.Get(domain.FieldSubject))
		dir.AssertExpectations(t)
	})

	t.Run("remember failures are swallowed", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Remember", mock.Anything, mock.Anything).Return(errors.New("cache down")).Once()

		c := newTestCatalog(dir)
		d := seed()

		_, err := c.Apply(ctx, ModeSingle, StepSelection, d, choice("m1"))
		require.NoError(t, err)
	})

	t.Run("manual sentinel skips the directory", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		out, err := c.Apply(ctx, ModeSingle, StepSelection, d, choice(optManual))
		require.NoError(t, err)
		assert.Equal(t, StepDetails, out.Next)
		assert.Equal(t, domain.ManualSourceRef, d.Get(domain.FieldSourceRef))
	})

	t.Run("stale item id is rejected inline", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		_, err := c.Apply(ctx, ModeSingle, StepSelection, d, choice("gone"))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("browse ends with the counterpart notice", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		out, err := c.Apply(ctx, ModeBrowse, StepSelection, d, choice("m1"))
		require.NoError(t, err)
		assert.Equal(t, StepDone, out.Next)
		assert.Contains(t, out.Notice, "City")
	})

	t.Run("browse does not offer manual entry", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		spec, err := c.Spec(ctx, ModeBrowse, StepSelection, d)
		require.NoError(t, err)
		for _, opt := range spec.Options {
			assert.NotEqual(t, optManual, opt.Value)
		}
	})
}

func TestDetailsStep(t *testing.T) {
	ctx := context.Background()

	manualDraft := func() *domain.Draft {
		d := domain.NewDraft()
		d.Set(domain.FieldCategory, "Soccer")
		d.Set(domain.FieldSourceRef, domain.ManualSourceRef)
		return d
	}

	t.Run("manual form takes four lines", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := manualDraft()

		out, err := c.Apply(ctx, ModeSingle, StepDetails, d, text("United\nCity\nspread -1.5\n-110"))
		require.NoError(t, err)
		assert.Equal(t, StepStake, out.Next)
		assert.Equal(t, "United", d.Get(domain.FieldSubject))
		assert.Equal(t, "City", d.Get(domain.FieldCounterpart))
		assert.Equal(t, "spread -1.5", d.Get(domain.FieldDetail))
		assert.Equal(t, string(domain.OddsAmerican), d.Get(domain.FieldOddsFormat))
		assert.Equal(t, "-110", d.Get(domain.FieldOddsValue))
	})

	t.Run("catalog-sourced form takes three lines", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()
		d.Merge(map[string]string{
			domain.FieldCategory:    "Soccer",
			domain.FieldSourceRef:   "m1",
			domain.FieldSubject:     "United vs City",
			domain.FieldCounterpart: "City",
		})

		out, err := c.Apply(ctx, ModeSingle, StepDetails, d, text("United (H)\nover 2.5 goals\n1.95"))
		require.NoError(t, err)
		assert.Equal(t, StepStake, out.Next)
		assert.Equal(t, "United (H)", d.Get(domain.FieldSubject))
		// Counterpart came from the catalog pick and is untouched by the form.
		assert.Equal(t, "City", d.Get(domain.FieldCounterpart))
	})

	t.Run("wrong line count is rejected with the expected count", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := manualDraft()

		_, err := c.Apply(ctx, ModeSingle, StepDetails, d, text("United\nCity"))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Msg, "expected 4 lines")
		assert.Empty(t, d.Get(domain.FieldSubject))
	})

	t.Run("over-limit field is rejected, not truncated", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := manualDraft()
		long := strings.Repeat("x", maxLabelLen+1)

		_, err := c.Apply(ctx, ModeSingle, StepDetails, d, text(long+"\nCity\nline\n-110"))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "subject", vErr.Field)
	})

	t.Run("bad odds reject the whole form", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := manualDraft()

		_, err := c.Apply(ctx, ModeSingle, StepDetails, d, text("United\nCity\nline\n1.0"))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Empty(t, d.Get(domain.FieldSubject))
	})

	t.Run("parlay appends a leg and loops to the leg decision", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := manualDraft()

		out, err := c.Apply(ctx, ModeParlay, StepDetails, d, text("United\nCity\nspread -1.5\n+120"))
		require.NoError(t, err)
		assert.Equal(t, StepLegDecision, out.Next)
		assert.True(t, out.LegAppended)
		require.Len(t, d.Legs, 1)
		assert.Equal(t, "United", d.Legs[0].Label)
		assert.Equal(t, float64(120), d.Legs[0].Odds.Value)
	})
}

func TestLegDecisionStep(t *testing.T) {
	ctx := context.Background()

	seed := func() *domain.Draft {
		d := domain.NewDraft()
		d.Set(domain.FieldScopeID, "77")
		d.Legs = []domain.Leg{
			{Label: "United", Detail: "spread -1.5", Odds: domain.Odds{Format: domain.OddsAmerican, Value: -110}},
			{Label: "Federer", Detail: "to win", Odds: domain.Odds{Format: domain.OddsDecimal, Value: 2.2}},
		}
		return d
	}

	t.Run("add clears per-leg fields and returns to category", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()
		d.Set(domain.FieldSubject, "Federer")

		out, err := c.Apply(ctx, ModeParlay, StepLegDecision, d, choice(optAdd))
		require.NoError(t, err)
		assert.Equal(t, StepCategory, out.Next)
		assert.Empty(t, d.Get(domain.FieldSubject))
		assert.Equal(t, "77", d.Get(domain.FieldScopeID))
		require.Len(t, d.Legs, 2)
	})

	t.Run("finalize requires at least one leg", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		_, err := c.Apply(ctx, ModeParlay, StepLegDecision, d, choice(optFinalize))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("finalize moves to the stake step", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		out, err := c.Apply(ctx, ModeParlay, StepLegDecision, d, choice(optFinalize))
		require.NoError(t, err)
		assert.Equal(t, StepStake, out.Next)
	})

	t.Run("remove drops the indexed leg and re-prompts", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		out, err := c.Apply(ctx, ModeParlay, StepLegDecision, d, choice("rm:0"))
		require.NoError(t, err)
		assert.Equal(t, StepLegDecision, out.Next)
		require.Len(t, d.Legs, 1)
		assert.Equal(t, "Federer", d.Legs[0].Label)
	})

	t.Run("remove with a stale index is rejected", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := seed()

		_, err := c.Apply(ctx, ModeParlay, StepLegDecision, d, choice("rm:5"))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Len(t, d.Legs, 2)
	})
}

func TestStakeDestinationConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("stake must be on the ladder", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		_, err := c.Apply(ctx, ModeSingle, StepStake, d, choice("7"))
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)

		out, err := c.Apply(ctx, ModeSingle, StepStake, d, choice("2"))
		require.NoError(t, err)
		assert.Equal(t, StepDestination, out.Next)
		assert.Equal(t, "2", d.Get(domain.FieldStake))
	})

	t.Run("destination spec fails closed with no configured channels", func(t *testing.T) {
		c := newTestCatalog(nil)
		c.UpdateCuration(Curation{Categories: []string{"Soccer"}, StakeLadder: []float64{1}})
		d := domain.NewDraft()

		_, err := c.Spec(ctx, ModeSingle, StepDestination, d)
		require.ErrorIs(t, err, ErrNoDestinations)
	})

	t.Run("destination must be an eligible channel", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		_, err := c.Apply(ctx, ModeSingle, StepDestination, d, choice("-999"))
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)

		out, err := c.Apply(ctx, ModeSingle, StepDestination, d, choice("-100123"))
		require.NoError(t, err)
		assert.Equal(t, StepConfirm, out.Next)
		assert.Equal(t, "-100123", d.Get(domain.FieldChannelID))
	})

	t.Run("confirm finalizes, discard cancels", func(t *testing.T) {
		c := newTestCatalog(nil)
		d := domain.NewDraft()

		out, err := c.Apply(ctx, ModeSingle, StepConfirm, d, choice(optConfirm))
		require.NoError(t, err)
		assert.Equal(t, StepDone, out.Next)
		assert.True(t, out.Finalized)

		out, err = c.Apply(ctx, ModeSingle, StepConfirm, d, choice(optCancel))
		require.NoError(t, err)
		assert.True(t, out.Cancelled)
	})
}

func TestBrowseFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("empty category ends the browse immediately", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Lookup", mock.Anything, "Tennis", int64(0), 24).
			Return([]domain.Item(nil), nil).Once()

		c := newTestCatalog(dir)
		d := domain.NewDraft()

		out, err := c.Apply(ctx, ModeBrowse, StepCategory, d, choice("Tennis"))
		require.NoError(t, err)
		assert.Equal(t, StepDone, out.Next)
		assert.Contains(t, out.Notice, "Tennis")
	})

	t.Run("populated category moves to selection", func(t *testing.T) {
		dir := new(mockDirectory)
		dir.On("Lookup", mock.Anything, "Tennis", int64(0), 24).
			Return([]domain.Item{{ID: "t1", Label: "Alcaraz vs Sinner"}}, nil).Once()

		c := newTestCatalog(dir)
		d := domain.NewDraft()

		out, err := c.Apply(ctx, ModeBrowse, StepCategory, d, choice("Tennis"))
		require.NoError(t, err)
		assert.Equal(t, StepSelection, out.Next)
	})
}

func TestTransitionTable(t *testing.T) {
	t.Run("forward edges only for single mode", func(t *testing.T) {
		assert.True(t, isNextAllowed(ModeSingle, StepCategory, StepLineType))
		assert.False(t, isNextAllowed(ModeSingle, StepCategory, StepStake))
		assert.False(t, isNextAllowed(ModeSingle, StepStake, StepCategory))
	})

	t.Run("leg decision loop is the only backward edge", func(t *testing.T) {
		assert.True(t, isNextAllowed(ModeParlay, StepLegDecision, StepCategory))
		assert.True(t, isNextAllowed(ModeParlay, StepLegDecision, StepLegDecision))
		assert.False(t, isNextAllowed(ModeSingle, StepDetails, StepCategory))
	})

	t.Run("done is reachable only through confirm or browse", func(t *testing.T) {
		assert.True(t, isNextAllowed(ModeSingle, StepConfirm, StepDone))
		assert.True(t, isNextAllowed(ModeBrowse, StepCategory, StepDone))
		assert.False(t, isNextAllowed(ModeSingle, StepStake, StepDone))
	})

	t.Run("leg decision does not exist outside parlay", func(t *testing.T) {
		assert.False(t, isNextAllowed(ModeSingle, StepLegDecision, StepStake))
	})
}

func TestSummary(t *testing.T) {
	t.Run("single slip", func(t *testing.T) {
		d := domain.NewDraft()
		d.Merge(map[string]string{
			domain.FieldCategory:    "Soccer",
			domain.FieldLineType:    lineTypeEvent,
			domain.FieldSubject:     "United",
			domain.FieldCounterpart: "City",
			domain.FieldDetail:      "spread -1.5",
			domain.FieldOddsFormat:  string(domain.OddsAmerican),
			domain.FieldOddsValue:   "-110",
			domain.FieldStake:       "2",
		})

		got := Summary(d, ModeSingle)
		assert.Contains(t, got, "United vs City")
		assert.Contains(t, got, "spread -1.5 @ -110")
		assert.Contains(t, got, "Stake: 2u")
	})

	t.Run("parlay lists every leg", func(t *testing.T) {
		d := domain.NewDraft()
		d.Legs = []domain.Leg{
			{Label: "United", Counterpart: "City", Detail: "spread -1.5", Odds: domain.Odds{Format: domain.OddsAmerican, Value: -110}},
			{Label: "Alcaraz", Counterpart: "Sinner", Detail: "to win", Odds: domain.Odds{Format: domain.OddsDecimal, Value: 2.2}},
		}
		d.Set(domain.FieldStake, "1")

		got := Summary(d, ModeParlay)
		assert.Contains(t, got, "Parlay — 2 legs")
		assert.Contains(t, got, "1. United vs City")
		assert.Contains(t, got, "@ 2.2")
	})
}

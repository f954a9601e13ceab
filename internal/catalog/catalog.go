package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
)

// Sentinel option values shared with the interaction surface.
const (
	// OtherCategory is the fixed sentinel appended to the curated categories.
	OtherCategory = "Other"

	optManual   = "manual"
	optAdd      = "add"
	optFinalize = "finalize"
	optConfirm  = "confirm"
	optCancel   = "cancel"

	removePrefix = "rm:"
)

// Per-field length limits. Inputs over the limit are rejected, never
// silently truncated.
const (
	maxLabelLen  = 64
	maxDetailLen = 120
	maxOddsLen   = 16
)

const lineTypeEvent = "event"
const lineTypeParticipant = "participant"

// Directory is the participant/catalog lookup collaborator.
type Directory interface {
	// Lookup returns ranked items for a category. Failures are treated as
	// transient: the flow degrades to manual entry.
	Lookup(ctx context.Context, category string, scopeID int64, limit int) ([]domain.Item, error)
	// Remember warms the ranking cache for a picked item. Best effort.
	Remember(ctx context.Context, item domain.Item) error
}

// Curation is the hot-reloadable slice of configuration the catalog serves
// prompts from.
type Curation struct {
	Categories       []string
	Destinations     []Destination
	StakeLadder      []float64
	MaxSelectOptions int
}

// Destination is an eligible publish target.
type Destination struct {
	Label     string
	ChannelID int64
}

// ErrNoDestinations is the terminal error state reached when the destination
// step has nothing to offer.
var ErrNoDestinations = fmt.Errorf("no destinations configured")

// Catalog maps (step, mode) to prompt specs, validation rules, and next-step
// decisions. It holds no per-session state.
type Catalog struct {
	dir      Directory
	log      *slog.Logger
	curation atomic.Pointer[Curation]
	handlers map[stepKey]stepHandler
}

type stepKey struct {
	step StepID
	mode Mode
}

type stepHandler struct {
	spec  func(ctx context.Context, c *Catalog, mode Mode, d *domain.Draft) (*StepSpec, error)
	apply func(ctx context.Context, c *Catalog, mode Mode, d *domain.Draft, in Input) (*Outcome, error)
}

// New builds a Catalog around the directory collaborator and the initial
// curation snapshot.
func New(dir Directory, cur Curation, log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}

	c := &Catalog{
		dir: dir,
		log: log,
	}
	c.curation.Store(&cur)
	c.registerHandlers()

	return c
}

// UpdateCuration swaps in a fresh curation snapshot. Safe to call while
// sessions are in flight; in-progress prompts validate against whichever
// snapshot is current when the input arrives.
func (c *Catalog) UpdateCuration(cur Curation) {
	c.curation.Store(&cur)
}

// EntryStep returns the step every flow opens on. All three modes start by
// picking a category; the flows only diverge from the line-type step onward.
func (c *Catalog) EntryStep() StepID {
	return StepCategory
}

// Spec produces the prompt specification for a step.
func (c *Catalog) Spec(ctx context.Context, mode Mode, step StepID, d *domain.Draft) (*StepSpec, error) {
	h, ok := c.handlers[stepKey{step: step, mode: mode}]
	if !ok || h.spec == nil {
		return nil, fmt.Errorf("no prompt registered for step %q in mode %q", step, mode)
	}

	return h.spec(ctx, c, mode, d)
}

// Apply validates and applies one input against a step. On validation
// failure it returns a *ValidationError and leaves the draft untouched.
func (c *Catalog) Apply(ctx context.Context, mode Mode, step StepID, d *domain.Draft, in Input) (*Outcome, error) {
	h, ok := c.handlers[stepKey{step: step, mode: mode}]
	if !ok || h.apply == nil {
		return nil, fmt.Errorf("no handler registered for step %q in mode %q", step, mode)
	}

	out, err := h.apply(ctx, c, mode, d, in)
	if err != nil {
		return nil, err
	}

	if out.Next != "" && !isNextAllowed(mode, step, out.Next) {
		return nil, fmt.Errorf("illegal step transition %s -> %s in mode %s", step, out.Next, mode)
	}

	return out, nil
}

func (c *Catalog) registerHandlers() {
	c.handlers = make(map[stepKey]stepHandler)

	register := func(step StepID, h stepHandler, modes ...Mode) {
		for _, m := range modes {
			c.handlers[stepKey{step: step, mode: m}] = h
		}
	}

	register(StepCategory, stepHandler{spec: categorySpec, apply: applyCategory}, ModeSingle, ModeParlay, ModeBrowse)
	register(StepLineType, stepHandler{spec: lineTypeSpec, apply: applyLineType}, ModeSingle, ModeParlay)
	register(StepSelection, stepHandler{spec: selectionSpec, apply: applySelection}, ModeSingle, ModeParlay, ModeBrowse)
	register(StepDetails, stepHandler{spec: detailsSpec, apply: applyDetails}, ModeSingle, ModeParlay)
	register(StepLegDecision, stepHandler{spec: legDecisionSpec, apply: applyLegDecision}, ModeParlay)
	register(StepStake, stepHandler{spec: stakeSpec, apply: applyStake}, ModeSingle, ModeParlay)
	register(StepDestination, stepHandler{spec: destinationSpec, apply: applyDestination}, ModeSingle, ModeParlay)
	register(StepConfirm, stepHandler{spec: confirmSpec, apply: applyConfirm}, ModeSingle, ModeParlay)
}

// --- category ---

func categorySpec(_ context.Context, c *Catalog, mode Mode, d *domain.Draft) (*StepSpec, error) {
	cur := c.curation.Load()

	options := make([]Option, 0, len(cur.Categories)+1)
	for _, cat := range cur.Categories {
		options = append(options, Option{Label: cat, Value: cat})
	}
	options = append(options, Option{Label: OtherCategory, Value: OtherCategory})

	title := "Pick a category"
	if mode == ModeParlay {
		title = fmt.Sprintf("Pick a category for leg %d", len(d.Legs)+1)
	}

	return &StepSpec{
		Step:    StepCategory,
		Kind:    PromptChoice,
		Title:   title,
		Options: options,
	}, nil
}

func applyCategory(ctx context.Context, c *Catalog, mode Mode, d *domain.Draft, in Input) (*Outcome, error) {
	value := strings.TrimSpace(in.Value)
	if value == "" {
		return nil, invalid("category", "a category is required")
	}
	if len(value) > maxLabelLen {
		return nil, invalid("category", fmt.Sprintf("must be at most %d characters", maxLabelLen))
	}

	cur := c.curation.Load()
	if value != OtherCategory && !containsString(cur.Categories, value) {
		return nil, invalid("category", fmt.Sprintf("%q is not one of the offered categories", value))
	}

	d.Set(domain.FieldCategory, value)

	if mode == ModeBrowse {
		items := c.eligibleItems(ctx, value, scopeID(d), cur.MaxSelectOptions)
		if len(items) == 0 {
			return &Outcome{Next: StepDone, Notice: fmt.Sprintf("Nothing is currently listed under %s.", value)}, nil
		}
		d.Items = items
		return &Outcome{Next: StepSelection}, nil
	}

	return &Outcome{Next: StepLineType}, nil
}

// --- line type ---

func lineTypeSpec(_ context.Context, _ *Catalog, _ Mode, _ *domain.Draft) (*StepSpec, error) {
	return &StepSpec{
		Step:  StepLineType,
		Kind:  PromptChoice,
		Title: "What kind of line is this?",
		Options: []Option{
			{Label: "Event line", Value: lineTypeEvent},
			{Label: "Participant line", Value: lineTypeParticipant},
		},
	}, nil
}

func applyLineType(ctx context.Context, c *Catalog, mode Mode, d *domain.Draft, in Input) (*Outcome, error) {
	value := strings.TrimSpace(in.Value)
	if value != lineTypeEvent && value != lineTypeParticipant {
		return nil, invalid("line type", "pick one of the offered line kinds")
	}

	d.Set(domain.FieldLineType, value)

	// The branch decision happens here: with eligible directory items the
	// flow goes through selection, otherwise straight to manual entry.
	cur := c.curation.Load()
	items := c.eligibleItems(ctx, d.Get(domain.FieldCategory), scopeID(d), cur.MaxSelectOptions)
	if len(items) == 0 {
		d.Set(domain.FieldSourceRef, domain.ManualSourceRef)
		return &Outcome{Next: StepDetails}, nil
	}

	d.Items = items
	return &Outcome{Next: StepSelection}, nil
}

// --- selection ---

func selectionSpec(_ context.Context, _ *Catalog, mode Mode, d *domain.Draft) (*StepSpec, error) {
	options := make([]Option, 0, len(d.Items)+1)
	for _, item := range d.Items {
		options = append(options, Option{Label: item.Label, Value: item.ID})
	}
	if mode != ModeBrowse {
		options = append(options, Option{Label: "Enter manually…", Value: optManual})
	}

	return &StepSpec{
		Step:    StepSelection,
		Kind:    PromptChoice,
		Title:   fmt.Sprintf("Pick from %s", d.Get(domain.FieldCategory)),
		Options: options,
	}, nil
}

func applySelection(ctx context.Context, c *Catalog, mode Mode, d *domain.Draft, in Input) (*Outcome, error) {
	value := strings.TrimSpace(in.Value)

	if value == optManual && mode != ModeBrowse {
		d.Set(domain.FieldSourceRef, domain.ManualSourceRef)
		return &Outcome{Next: StepDetails}, nil
	}

	item, ok := findItem(d.Items, value)
	if !ok {
		return nil, invalid("selection", "that entry is no longer available; pick again")
	}

	if mode == ModeBrowse {
		return &Outcome{
			Next:   StepDone,
			Notice: fmt.Sprintf("%s — opposite side: %s (%s)", item.Label, item.Counterpart, item.Category),
		}, nil
	}

	d.Merge(map[string]string{
		domain.FieldSourceRef:   item.ID,
		domain.FieldSubject:     item.Label,
		domain.FieldCounterpart: item.Counterpart,
	})

	if c.dir != nil {
		if err := c.dir.Remember(ctx, item); err != nil {
			c.log.Debug("directory remember failed", slog.String("item", item.ID), slog.Any("error", err))
		}
	}

	return &Outcome{Next: StepDetails}, nil
}

// --- details form ---

func detailsSpec(_ context.Context, _ *Catalog, _ Mode, d *domain.Draft) (*StepSpec, error) {
	manual := d.Get(domain.FieldSourceRef) == domain.ManualSourceRef

	var fields []Field
	if manual {
		fields = []Field{
			{Name: "subject", Prompt: "who or what the bet is on", MaxLen: maxLabelLen},
			{Name: "counterpart", Prompt: "the opposing side", MaxLen: maxLabelLen},
			{Name: "detail", Prompt: "the line itself, e.g. spread -3.5", MaxLen: maxDetailLen},
			{Name: "odds", Prompt: "the price, e.g. -110 or 2.5", MaxLen: maxOddsLen},
		}
	} else {
		fields = []Field{
			{Name: "subject", Prompt: fmt.Sprintf("confirm the display name (currently %q)", d.Get(domain.FieldSubject)), MaxLen: maxLabelLen},
			{Name: "detail", Prompt: "the line itself, e.g. spread -3.5", MaxLen: maxDetailLen},
			{Name: "odds", Prompt: "the price, e.g. -110 or 2.5", MaxLen: maxOddsLen},
		}
	}

	lines := make([]string, 0, len(fields))
	for i, f := range fields {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, f.Prompt))
	}

	return &StepSpec{
		Step:   StepDetails,
		Kind:   PromptForm,
		Title:  "Send the line details, one value per line:",
		Body:   strings.Join(lines, "\n"),
		Fields: fields,
	}, nil
}

func applyDetails(ctx context.Context, c *Catalog, mode Mode, d *domain.Draft, in Input) (*Outcome, error) {
	spec, err := detailsSpec(ctx, c, mode, d)
	if err != nil {
		return nil, err
	}
	fields := spec.Fields

	values := strings.Split(in.Value, "\n")
	if len(values) != len(fields) {
		return nil, invalid("details", fmt.Sprintf("expected %d lines, got %d", len(fields), len(values)))
	}

	parsed := make(map[string]string, len(fields))
	for i, f := range fields {
		value := strings.TrimSpace(values[i])
		if value == "" {
			return nil, invalid(f.Name, "must not be empty")
		}
		if len(value) > f.MaxLen {
			return nil, invalid(f.Name, fmt.Sprintf("must be at most %d characters", f.MaxLen))
		}
		parsed[f.Name] = value
	}

	odds, err := ParseOdds(parsed["odds"])
	if err != nil {
		return nil, err
	}

	merge := map[string]string{
		domain.FieldSubject:    parsed["subject"],
		domain.FieldDetail:     parsed["detail"],
		domain.FieldOddsFormat: string(odds.Format),
		domain.FieldOddsValue:  strconv.FormatFloat(odds.Value, 'f', -1, 64),
	}
	if counterpart, ok := parsed["counterpart"]; ok {
		merge[domain.FieldCounterpart] = counterpart
	}
	d.Merge(merge)

	if mode == ModeParlay {
		d.Legs = append(d.Legs, domain.Leg{
			SourceRef:   d.Get(domain.FieldSourceRef),
			Label:       d.Get(domain.FieldSubject),
			Counterpart: d.Get(domain.FieldCounterpart),
			Detail:      d.Get(domain.FieldDetail),
			Category:    d.Get(domain.FieldCategory),
			Odds:        odds,
		})
		return &Outcome{Next: StepLegDecision, LegAppended: true}, nil
	}

	return &Outcome{Next: StepStake}, nil
}

// --- leg decision (parlay only) ---

func legDecisionSpec(_ context.Context, _ *Catalog, _ Mode, d *domain.Draft) (*StepSpec, error) {
	options := []Option{{Label: "Add another leg", Value: optAdd}}
	if len(d.Legs) > 0 {
		options = append(options, Option{Label: fmt.Sprintf("Finalize (%d legs)", len(d.Legs)), Value: optFinalize})
	}
	for i, leg := range d.Legs {
		options = append(options, Option{
			Label: fmt.Sprintf("Remove leg %d: %s", i+1, leg.Label),
			Value: removePrefix + strconv.Itoa(i),
		})
	}

	return &StepSpec{
		Step:    StepLegDecision,
		Kind:    PromptChoice,
		Title:   "Parlay so far:",
		Body:    legSummary(d.Legs),
		Options: options,
	}, nil
}

func applyLegDecision(_ context.Context, _ *Catalog, _ Mode, d *domain.Draft, in Input) (*Outcome, error) {
	value := strings.TrimSpace(in.Value)

	switch {
	case value == optAdd:
		d.ClearLegFields()
		return &Outcome{Next: StepCategory}, nil

	case value == optFinalize:
		if len(d.Legs) == 0 {
			return nil, invalid("parlay", "at least one leg is required before finalizing")
		}
		return &Outcome{Next: StepStake}, nil

	case strings.HasPrefix(value, removePrefix):
		idx, err := strconv.Atoi(strings.TrimPrefix(value, removePrefix))
		if err != nil || idx < 0 || idx >= len(d.Legs) {
			return nil, invalid("parlay", "that leg no longer exists")
		}
		d.Legs = append(d.Legs[:idx], d.Legs[idx+1:]...)
		return &Outcome{Next: StepLegDecision}, nil
	}

	return nil, invalid("parlay", "pick one of the offered actions")
}

// --- stake ---

func stakeSpec(_ context.Context, c *Catalog, _ Mode, _ *domain.Draft) (*StepSpec, error) {
	cur := c.curation.Load()

	options := make([]Option, 0, len(cur.StakeLadder))
	for _, stake := range cur.StakeLadder {
		formatted := strconv.FormatFloat(stake, 'f', -1, 64)
		options = append(options, Option{Label: formatted + "u", Value: formatted})
	}

	return &StepSpec{
		Step:    StepStake,
		Kind:    PromptChoice,
		Title:   "How many units?",
		Options: options,
	}, nil
}

func applyStake(_ context.Context, c *Catalog, _ Mode, d *domain.Draft, in Input) (*Outcome, error) {
	value := strings.TrimSpace(in.Value)

	stake, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, invalid("stake", "pick one of the offered unit sizes")
	}

	cur := c.curation.Load()
	if !containsFloat(cur.StakeLadder, stake) {
		return nil, invalid("stake", fmt.Sprintf("%s units is not on the ladder", value))
	}

	d.Set(domain.FieldStake, strconv.FormatFloat(stake, 'f', -1, 64))

	return &Outcome{Next: StepDestination}, nil
}

// --- destination ---

func destinationSpec(_ context.Context, c *Catalog, _ Mode, _ *domain.Draft) (*StepSpec, error) {
	cur := c.curation.Load()
	if len(cur.Destinations) == 0 {
		return nil, ErrNoDestinations
	}

	options := make([]Option, 0, len(cur.Destinations))
	for _, dest := range cur.Destinations {
		options = append(options, Option{Label: dest.Label, Value: strconv.FormatInt(dest.ChannelID, 10)})
	}

	return &StepSpec{
		Step:    StepDestination,
		Kind:    PromptChoice,
		Title:   "Where should the slip be posted?",
		Options: options,
	}, nil
}

func applyDestination(_ context.Context, c *Catalog, _ Mode, d *domain.Draft, in Input) (*Outcome, error) {
	value := strings.TrimSpace(in.Value)

	channelID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, invalid("destination", "pick one of the offered channels")
	}

	cur := c.curation.Load()
	found := false
	for _, dest := range cur.Destinations {
		if dest.ChannelID == channelID {
			found = true
			break
		}
	}
	if !found {
		return nil, invalid("destination", "that channel is not an eligible target")
	}

	d.Set(domain.FieldChannelID, value)

	return &Outcome{Next: StepConfirm}, nil
}

// --- confirm ---

func confirmSpec(_ context.Context, _ *Catalog, mode Mode, d *domain.Draft) (*StepSpec, error) {
	return &StepSpec{
		Step:  StepConfirm,
		Kind:  PromptChoice,
		Title: "Review your slip",
		Body:  Summary(d, mode),
		Options: []Option{
			{Label: "Confirm and publish ✅", Value: optConfirm},
			{Label: "Discard ❌", Value: optCancel},
		},
	}, nil
}

func applyConfirm(_ context.Context, _ *Catalog, _ Mode, _ *domain.Draft, in Input) (*Outcome, error) {
	switch strings.TrimSpace(in.Value) {
	case optConfirm:
		return &Outcome{Next: StepDone, Finalized: true}, nil
	case optCancel:
		return &Outcome{Cancelled: true}, nil
	}

	return nil, invalid("confirmation", "pick confirm or discard")
}

// --- helpers ---

// eligibleItems looks up directory items and drops concluded entries before
// they can be offered. Lookup failures degrade to an empty result so the
// flow continues through manual entry.
func (c *Catalog) eligibleItems(ctx context.Context, category string, scopeID int64, limit int) []domain.Item {
	if c.dir == nil {
		return nil
	}

	items, err := c.dir.Lookup(ctx, category, scopeID, limit)
	if err != nil {
		c.log.Warn("directory lookup failed, degrading to manual entry",
			slog.String("category", category), slog.Any("error", err))
		return nil
	}

	eligible := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.Concluded {
			continue
		}
		eligible = append(eligible, item)
		if limit > 0 && len(eligible) == limit {
			break
		}
	}

	return eligible
}

func findItem(items []domain.Item, id string) (domain.Item, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.Item{}, false
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func containsFloat(list []float64, value float64) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func scopeID(d *domain.Draft) int64 {
	id, _ := strconv.ParseInt(d.Get(domain.FieldScopeID), 10, 64)
	return id
}

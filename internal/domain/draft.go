package domain

// Well-known draft field keys. The draft is an open mapping so steps can stash
// whatever they need, but the builder flow sticks to these.
const (
	FieldCategory    = "category"
	FieldLineType    = "line_type"
	FieldSourceRef   = "source_ref"
	FieldSubject     = "subject"
	FieldCounterpart = "counterpart"
	FieldDetail      = "detail"
	FieldOddsFormat  = "odds_format"
	FieldOddsValue   = "odds_value"
	FieldStake       = "stake"
	FieldChannelID   = "channel_id"
	FieldScopeID     = "scope_id"
)

// Draft accumulates the fields of one in-progress bet. It carries no logic
// beyond get/set/merge and is never accessed concurrently: the session
// engine's in-flight guard serializes every mutation.
type Draft struct {
	fields map[string]string

	// Legs is the ordered leg sequence for parlay sessions.
	Legs []Leg

	// Items caches the directory results fetched when the selection step was
	// computed, so the selection prompt and its validation see the same list.
	Items []Item

	// Version increments on every field mutation. Preview artifacts remember
	// the version they were rendered at so staleness is detectable.
	Version uint64
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{fields: make(map[string]string)}
}

// Get returns the value stored under key, or an empty string.
func (d *Draft) Get(key string) string {
	return d.fields[key]
}

// Set stores value under key, overwriting any previous value.
func (d *Draft) Set(key, value string) {
	d.fields[key] = value
	d.Version++
}

// Merge copies every entry of values into the draft.
func (d *Draft) Merge(values map[string]string) {
	for k, v := range values {
		d.fields[k] = v
	}
	if len(values) > 0 {
		d.Version++
	}
}

// Delete removes key from the draft.
func (d *Draft) Delete(key string) {
	if _, ok := d.fields[key]; ok {
		delete(d.fields, key)
		d.Version++
	}
}

// Fields returns a copy of the field map.
func (d *Draft) Fields() map[string]string {
	out := make(map[string]string, len(d.fields))
	for k, v := range d.fields {
		out[k] = v
	}
	return out
}

// ClearLegFields drops the per-leg keys so the next leg starts clean while
// the accumulated legs survive.
func (d *Draft) ClearLegFields() {
	for _, key := range []string{
		FieldCategory, FieldLineType, FieldSourceRef,
		FieldSubject, FieldCounterpart, FieldDetail,
		FieldOddsFormat, FieldOddsValue,
	} {
		delete(d.fields, key)
	}
	d.Items = nil
	d.Version++
}

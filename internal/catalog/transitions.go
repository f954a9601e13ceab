package catalog

// validNext contains the permitted forward transitions of the builder flow.
// The leg-decision loop is the only backward edge: a parlay returns to the
// category step for each additional leg.
var validNext = map[Mode]map[StepID][]StepID{
	ModeSingle: {
		StepCategory:    {StepLineType},
		StepLineType:    {StepSelection, StepDetails},
		StepSelection:   {StepDetails},
		StepDetails:     {StepStake},
		StepStake:       {StepDestination},
		StepDestination: {StepConfirm},
		StepConfirm:     {StepDone},
	},
	ModeParlay: {
		StepCategory:    {StepLineType},
		StepLineType:    {StepSelection, StepDetails},
		StepSelection:   {StepDetails},
		StepDetails:     {StepLegDecision},
		StepLegDecision: {StepCategory, StepLegDecision, StepStake},
		StepStake:       {StepDestination},
		StepDestination: {StepConfirm},
		StepConfirm:     {StepDone},
	},
	ModeBrowse: {
		StepCategory:  {StepSelection, StepDone},
		StepSelection: {StepDone},
	},
}

// isNextAllowed reports whether moving from one step to another is valid for
// the mode. StepDone is not universally reachable: only the confirm step and
// the browse flow may end a session through the catalog.
func isNextAllowed(mode Mode, from, to StepID) bool {
	allowed, ok := validNext[mode][from]
	if !ok {
		return false
	}

	for _, step := range allowed {
		if step == to {
			return true
		}
	}

	return false
}

package chat

import "strings"

// ActionVerb is the closed set of postback verbs the service understands.
type ActionVerb string

const (
	ActionDateToday            ActionVerb = "date_today"
	ActionDateTomorrow         ActionVerb = "date_tomorrow"
	ActionDateDayAfterTomorrow ActionVerb = "date_day_after_tomorrow"
	ActionDateCustom           ActionVerb = "date_custom"

	ActionTimeMorning   ActionVerb = "time_morning"
	ActionTimeAfternoon ActionVerb = "time_afternoon"
	ActionTimeEvening   ActionVerb = "time_evening"
	ActionTimeFullDay   ActionVerb = "time_full_day"

	ActionStartBandMorning   ActionVerb = "start_band_morning"
	ActionStartBandAfternoon ActionVerb = "start_band_afternoon"
	ActionStartAt            ActionVerb = "start_at"

	ActionEndBandDay     ActionVerb = "end_band_day"
	ActionEndBandEvening ActionVerb = "end_band_evening"
	ActionEndBandNight   ActionVerb = "end_band_night"
	ActionEndAt          ActionVerb = "end_at"

	ActionBreak30  ActionVerb = "break_30"
	ActionBreak60  ActionVerb = "break_60"
	ActionBreak90  ActionVerb = "break_90"
	ActionBreak120 ActionVerb = "break_120"

	ActionCount1     ActionVerb = "count_1"
	ActionCount2     ActionVerb = "count_2"
	ActionCount3     ActionVerb = "count_3"
	ActionCount4Plus ActionVerb = "count_4_plus"

	ActionPharmacistApply   ActionVerb = "pharmacist_apply"
	ActionPharmacistDecline ActionVerb = "pharmacist_decline"
	ActionPharmacistDetails ActionVerb = "pharmacist_details"

	ActionConfirmAccept ActionVerb = "pharmacist_confirm_accept"
	ActionConfirmReject ActionVerb = "pharmacist_confirm_reject"

	ActionUnknown ActionVerb = ""
)

var knownVerbs = map[ActionVerb]struct{}{
	ActionDateToday:            {},
	ActionDateTomorrow:         {},
	ActionDateDayAfterTomorrow: {},
	ActionDateCustom:           {},
	ActionTimeMorning:          {},
	ActionTimeAfternoon:        {},
	ActionTimeEvening:          {},
	ActionTimeFullDay:          {},
	ActionStartBandMorning:     {},
	ActionStartBandAfternoon:   {},
	ActionStartAt:              {},
	ActionEndBandDay:           {},
	ActionEndBandEvening:       {},
	ActionEndBandNight:         {},
	ActionEndAt:                {},
	ActionBreak30:              {},
	ActionBreak60:              {},
	ActionBreak90:              {},
	ActionBreak120:             {},
	ActionCount1:               {},
	ActionCount2:               {},
	ActionCount3:               {},
	ActionCount4Plus:           {},
	ActionPharmacistApply:      {},
	ActionPharmacistDecline:    {},
	ActionPharmacistDetails:    {},
	ActionConfirmAccept:        {},
	ActionConfirmReject:        {},
}

// Action is a parsed postback token. Tokens are parsed exactly once at the
// transport boundary; handlers switch on Verb and never re-split strings.
type Action struct {
	Verb ActionVerb
	Args []string
	Raw  string
}

// ParseAction splits a verb:arg1[:arg2...] token into a typed Action.
// A token without separators yields an empty argument list. Unrecognized
// verbs map to ActionUnknown with Raw preserved for logging.
func ParseAction(token string) Action {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ":")
	verb := ActionVerb(parts[0])
	if _, ok := knownVerbs[verb]; !ok {
		return Action{Verb: ActionUnknown, Raw: token}
	}
	args := parts[1:]
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	return Action{Verb: verb, Args: args, Raw: token}
}

// Arg returns the i-th argument or "" when absent. Malformed tokens therefore
// degrade to empty ids that downstream lookups report as not found.
func (a Action) Arg(i int) string {
	if i < 0 || i >= len(a.Args) {
		return ""
	}
	return a.Args[i]
}

// RequestID is the first argument by convention for request-scoped actions.
func (a Action) RequestID() string { return a.Arg(0) }

// PharmacistID is the second argument for store accept/reject actions.
func (a Action) PharmacistID() string { return a.Arg(1) }

// Token renders a verb with arguments back into wire form.
func Token(verb ActionVerb, args ...string) string {
	if len(args) == 0 {
		return string(verb)
	}
	return string(verb) + ":" + strings.Join(args, ":")
}

package attendance

import (
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// Action is a user-initiated status change.
type Action string

const (
	ActionClockIn          Action = "clock_in"
	ActionClockOut         Action = "clock_out"
	ActionStartBreak       Action = "start_break"
	ActionEndBreak         Action = "end_break"
	ActionStartOvertime    Action = "start_overtime"
	ActionEndOvertime      Action = "end_overtime"
	ActionStartClientVisit Action = "start_client_visit"
	ActionEndClientVisit   Action = "end_client_visit"
)

// Actions lists every action in declaration order.
var Actions = []Action{
	ActionClockIn,
	ActionClockOut,
	ActionStartBreak,
	ActionEndBreak,
	ActionStartOvertime,
	ActionEndOvertime,
	ActionStartClientVisit,
	ActionEndClientVisit,
}

// Transition is the result of a legal action.
// Events lists the activity types to append, in order.
type Transition struct {
	From   model.Status
	To     model.Status
	Action Action
	Events []model.ActivityType
}

type edge struct {
	to    model.Status
	event model.ActivityType
}

// transitions is the complete legality table. Any (status, action) pair that
// is absent is an invalid transition.
var transitions = map[model.Status]map[Action]edge{
	model.StatusReady: {
		ActionClockIn: {model.StatusWorking, model.ActivityClockIn},
	},
	model.StatusWorking: {
		ActionStartBreak:       {model.StatusBreak, model.ActivityBreakStart},
		ActionStartOvertime:    {model.StatusOvertime, model.ActivityOvertimeStart},
		ActionStartClientVisit: {model.StatusClientVisit, model.ActivityClientVisitStart},
		ActionClockOut:         {model.StatusOffline, model.ActivityClockOut},
	},
	model.StatusBreak: {
		ActionEndBreak: {model.StatusWorking, model.ActivityBreakEnd},
		ActionClockOut: {model.StatusOffline, model.ActivityClockOut},
	},
	model.StatusOvertime: {
		ActionEndOvertime: {model.StatusWorking, model.ActivityOvertimeEnd},
		ActionClockOut:    {model.StatusOffline, model.ActivityClockOut},
	},
	model.StatusClientVisit: {
		ActionEndClientVisit: {model.StatusWorking, model.ActivityClientVisitEnd},
		ActionClockOut:       {model.StatusOffline, model.ActivityClockOut},
	},
}

// Next validates action against current and returns the resulting transition.
//
// Clocking out of break, overtime or client visit emits the matching end
// event before clock_out so that no category is left open.
func Next(current model.Status, action Action) (Transition, error) {
	e, ok := transitions[current][action]
	if !ok {
		return Transition{}, NewInvalidTransition(action, current)
	}

	tr := Transition{From: current, To: e.to, Action: action}
	if action == ActionClockOut && current != model.StatusWorking {
		if end, ok := implicitEnd(current); ok {
			tr.Events = append(tr.Events, end)
		}
	}
	tr.Events = append(tr.Events, e.event)
	return tr, nil
}

// Allowed returns the actions legal from current, in declaration order.
func Allowed(current model.Status) []Action {
	var out []Action
	for _, a := range Actions {
		if _, ok := transitions[current][a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// ActionFor returns the action whose transition emits t.
func ActionFor(t model.ActivityType) Action {
	switch t {
	case model.ActivityClockIn:
		return ActionClockIn
	case model.ActivityClockOut:
		return ActionClockOut
	case model.ActivityBreakStart:
		return ActionStartBreak
	case model.ActivityBreakEnd:
		return ActionEndBreak
	case model.ActivityOvertimeStart:
		return ActionStartOvertime
	case model.ActivityOvertimeEnd:
		return ActionEndOvertime
	case model.ActivityClientVisitStart:
		return ActionStartClientVisit
	case model.ActivityClientVisitEnd:
		return ActionEndClientVisit
	}
	return Action(t)
}

// StatusAfter returns the status reached once t has been recorded from current.
func StatusAfter(current model.Status, t model.ActivityType) model.Status {
	switch {
	case t == model.ActivityClockIn:
		return model.StatusWorking
	case t == model.ActivityClockOut:
		return model.StatusOffline
	case t.IsStart():
		c, _ := model.CategoryOf(t)
		return model.StatusFor(c)
	case t.IsEnd():
		return model.StatusWorking
	}
	return current
}

// StatusFromRecords derives the status implied by a valid record sequence.
func StatusFromRecords(records []model.ActivityRecord) model.Status {
	status := model.StatusReady
	for _, r := range records {
		status = StatusAfter(status, r.Type)
	}
	return status
}

func implicitEnd(s model.Status) (model.ActivityType, bool) {
	switch s {
	case model.StatusBreak:
		return model.EndOf(model.CategoryBreak)
	case model.StatusOvertime:
		return model.EndOf(model.CategoryOvertime)
	case model.StatusClientVisit:
		return model.EndOf(model.CategoryClientVisit)
	}
	return "", false
}

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

const clockLayout = "15:04"

// totalsView renders totals as HH:MM strings.
type totalsView struct {
	Work        string `json:"work"`
	Break       string `json:"break"`
	Overtime    string `json:"overtime"`
	ClientVisit string `json:"client_visit"`
}

func viewTotals(t model.Totals) totalsView {
	return totalsView{
		Work:        attendance.FormatDuration(t.Work),
		Break:       attendance.FormatDuration(t.Break),
		Overtime:    attendance.FormatDuration(t.Overtime),
		ClientVisit: attendance.FormatDuration(t.ClientVisit),
	}
}

func (v totalsView) String() string {
	return fmt.Sprintf("work %s  break %s  overtime %s  client visit %s",
		v.Work, v.Break, v.Overtime, v.ClientVisit)
}

type activityView struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	At     string `json:"at"`
	Notes  string `json:"notes,omitempty"`
	Selfie string `json:"selfie,omitempty"`
}

// sessionView is the output of the attendance commands.
type sessionView struct {
	UserID     string         `json:"user_id"`
	Date       string         `json:"date"`
	Status     string         `json:"status"`
	Revision   int64          `json:"revision"`
	ClockIn    string         `json:"clock_in,omitempty"`
	ClockOut   string         `json:"clock_out,omitempty"`
	Totals     totalsView     `json:"totals"`
	Activities []activityView `json:"activities"`
}

func viewSession(s model.Session, loc *time.Location) sessionView {
	v := sessionView{
		UserID:     s.UserID,
		Date:       s.Date,
		Status:     string(s.Status),
		Revision:   s.Revision,
		Totals:     viewTotals(s.Totals),
		Activities: make([]activityView, 0, len(s.Activities)),
	}
	if !s.ClockIn.IsZero() {
		v.ClockIn = s.ClockIn.In(loc).Format(clockLayout)
	}
	if s.ClockOut != nil {
		v.ClockOut = s.ClockOut.In(loc).Format(clockLayout)
	}
	for _, a := range s.Activities {
		v.Activities = append(v.Activities, activityView{
			ID:     a.ID,
			Type:   string(a.Type),
			At:     a.Timestamp.In(loc).Format(clockLayout),
			Notes:  a.Notes,
			Selfie: a.SelfieRef,
		})
	}
	return v
}

func (v sessionView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s (revision %d)\n", v.UserID, v.Date, v.Status, v.Revision)
	for _, a := range v.Activities {
		fmt.Fprintf(&b, "  %s  %s", a.At, a.Type)
		if a.Notes != "" {
			fmt.Fprintf(&b, "  %q", a.Notes)
		}
		b.WriteString("\n")
	}
	b.WriteString("  " + v.Totals.String())
	return b.String()
}

type historyDay struct {
	Date     string     `json:"date"`
	Status   string     `json:"status"`
	ClockIn  string     `json:"clock_in,omitempty"`
	ClockOut string     `json:"clock_out,omitempty"`
	Totals   totalsView `json:"totals"`
}

// historyView lists stored sessions over a date range with their sum.
type historyView struct {
	UserID string       `json:"user_id"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Days   []historyDay `json:"days"`
	Total  totalsView   `json:"total"`
}

func viewHistory(userID, from, to string, sessions []model.Session, loc *time.Location) historyView {
	v := historyView{UserID: userID, From: from, To: to, Days: make([]historyDay, 0, len(sessions))}
	var sum model.Totals
	for _, s := range sessions {
		day := historyDay{Date: s.Date, Status: string(s.Status), Totals: viewTotals(s.Totals)}
		if !s.ClockIn.IsZero() {
			day.ClockIn = s.ClockIn.In(loc).Format(clockLayout)
		}
		if s.ClockOut != nil {
			day.ClockOut = s.ClockOut.In(loc).Format(clockLayout)
		}
		v.Days = append(v.Days, day)
		sum = sum.Add(s.Totals)
	}
	v.Total = viewTotals(sum)
	return v
}

func (v historyView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s..%s\n", v.UserID, v.From, v.To)
	if len(v.Days) == 0 {
		b.WriteString("  no sessions\n")
	}
	for _, d := range v.Days {
		out := d.ClockOut
		if out == "" {
			out = "--:--"
		}
		fmt.Fprintf(&b, "  %s  %s-%s  %-12s %s\n", d.Date, d.ClockIn, out, d.Status, d.Totals)
	}
	fmt.Fprintf(&b, "  total  %s", v.Total)
	return b.String()
}

// rosterView is the "who's working now" list.
type rosterView struct {
	Entries []model.RosterEntry `json:"entries"`
	loc     *time.Location
}

func (v rosterView) String() string {
	if len(v.Entries) == 0 {
		return "no employees"
	}
	var b strings.Builder
	for i, e := range v.Entries {
		if i > 0 {
			b.WriteString("\n")
		}
		name := e.DisplayName
		if name == "" {
			name = e.UserID
		}
		fmt.Fprintf(&b, "%-20s %-8s since %s", name, e.Status, e.Since.In(v.loc).Format("2006-01-02 15:04"))
	}
	return b.String()
}

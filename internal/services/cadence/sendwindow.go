package cadence

import "time"

// Window is the allowed delivery range for a business type: which weekdays,
// and the local hour range [Start, End).
type Window struct {
	Days  []time.Weekday
	Start int
	End   int
}

func (w Window) allowsDay(d time.Weekday) bool {
	for _, wd := range w.Days {
		if wd == d {
			return true
		}
	}
	return false
}

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
var midweek = []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday}

// sendWindows maps a business type to when its owner actually reads email.
// Trades hit the inbox early before jobs start; restaurants between the
// lunch and dinner rushes.
var sendWindows = map[string]Window{
	"plumber":     {Days: weekdays, Start: 7, End: 16},
	"electrician": {Days: weekdays, Start: 7, End: 16},
	"hvac":        {Days: weekdays, Start: 7, End: 16},
	"roofer":      {Days: weekdays, Start: 7, End: 16},
	"landscaper":  {Days: weekdays, Start: 7, End: 16},
	"restaurant":  {Days: midweek, Start: 14, End: 17},
	"cafe":        {Days: midweek, Start: 14, End: 17},
	"bakery":      {Days: midweek, Start: 13, End: 16},
	"retail":      {Days: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday}, Start: 9, End: 12},
	"salon":       {Days: midweek, Start: 10, End: 14},
	"dentist":     {Days: midweek, Start: 12, End: 16},
	"lawyer":      {Days: midweek, Start: 8, End: 11},
	"accountant":  {Days: midweek, Start: 8, End: 11},
	"gym":         {Days: midweek, Start: 10, End: 15},
	"auto repair": {Days: weekdays, Start: 7, End: 15},
}

var defaultWindow = Window{Days: midweek, Start: 9, End: 16}

// WindowFor returns the send window for a business type.
func WindowFor(businessType string) Window {
	if w, ok := sendWindows[businessType]; ok {
		return w
	}
	return defaultWindow
}

// NextSendTime returns from itself when it already sits inside the window,
// otherwise the start of the next valid slot.
func NextSendTime(from time.Time, businessType string) time.Time {
	w := WindowFor(businessType)
	if w.allowsDay(from.Weekday()) && from.Hour() >= w.Start && from.Hour() < w.End {
		return from
	}
	day := from
	for i := 0; i < 8; i++ {
		open := time.Date(day.Year(), day.Month(), day.Day(), w.Start, 0, 0, 0, from.Location())
		if w.allowsDay(day.Weekday()) && open.After(from) {
			return open
		}
		day = day.AddDate(0, 0, 1)
	}
	// Unreachable for any window with at least one weekday.
	return from
}

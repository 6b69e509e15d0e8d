/*
fixengine — FIX protocol engine
Copyright (C) 2025 Steve Clarke <stephenlclarke@mac.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.

In accordance with section 13 of the AGPL, if you modify this program,
your modified version must prominently offer all users interacting with it
remotely through a computer network an opportunity to receive the source
code of your version.
*/
package session

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall clock time in the schedule's location.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay reads HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	var n int
	var err error
	switch strings.Count(s, ":") {
	case 1:
		n, err = fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute)
		n++
	case 2:
		n, err = fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second)
	}
	if err != nil || n != 3 || t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) seconds() int { return t.Hour*3600 + t.Minute*60 + t.Second }

// ParseWeekday accepts English day names or their first three letters.
func ParseWeekday(s string) (time.Weekday, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if l == name || (len(l) == 3 && strings.HasPrefix(name, l)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

// Schedule is the window in which a session may be logged on. A daily
// schedule repeats every day between Start and End; a weekly one runs from
// Start on StartDay to End on EndDay. End before Start wraps past midnight.
type Schedule struct {
	Start, End TimeOfDay
	Weekly     bool
	StartDay   time.Weekday
	EndDay     time.Weekday
	Location   *time.Location
	NonStop    bool
}

// NewDailySchedule returns a schedule active between start and end each day.
func NewDailySchedule(start, end TimeOfDay, loc *time.Location) *Schedule {
	return &Schedule{Start: start, End: end, Location: loc}
}

// NewWeeklySchedule returns a schedule active from start on startDay to end on endDay.
func NewWeeklySchedule(startDay time.Weekday, start TimeOfDay, endDay time.Weekday, end TimeOfDay, loc *time.Location) *Schedule {
	return &Schedule{Start: start, End: end, Weekly: true, StartDay: startDay, EndDay: endDay, Location: loc}
}

// NonStopSchedule is always in session.
func NonStopSchedule() *Schedule { return &Schedule{NonStop: true} }

func (s *Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// period returns the bounds of the latest session period starting at or before t.
func (s *Schedule) period(t time.Time) (start, end time.Time) {
	lt := t.In(s.location())
	y, m, d := lt.Date()

	back := 0
	if s.Weekly {
		back = (int(lt.Weekday()) - int(s.StartDay) + 7) % 7
	}
	start = time.Date(y, m, d-back, s.Start.Hour, s.Start.Minute, s.Start.Second, 0, s.location())
	if start.After(lt) {
		if s.Weekly {
			start = start.AddDate(0, 0, -7)
		} else {
			start = start.AddDate(0, 0, -1)
		}
	}

	days := 0
	if s.Weekly {
		days = (int(s.EndDay) - int(s.StartDay) + 7) % 7
		if days == 0 && s.End.seconds() <= s.Start.seconds() {
			days = 7
		}
	} else if s.End.seconds() <= s.Start.seconds() {
		days = 1
	}
	sy, sm, sd := start.Date()
	end = time.Date(sy, sm, sd+days, s.End.Hour, s.End.Minute, s.End.Second, 0, s.location())
	return start, end
}

// IsSessionTime reports whether t falls inside the session window.
func (s *Schedule) IsSessionTime(t time.Time) bool {
	if s == nil || s.NonStop {
		return true
	}
	start, end := s.period(t)
	return !t.Before(start) && !t.After(end)
}

// IsSameSession reports whether t1 and t2 fall in the same session period,
// in which case sequence numbers carry over between them.
func (s *Schedule) IsSameSession(t1, t2 time.Time) bool {
	if s == nil || s.NonStop {
		return true
	}
	if !s.IsSessionTime(t1) || !s.IsSessionTime(t2) {
		return false
	}
	s1, _ := s.period(t1)
	s2, _ := s.period(t2)
	return s1.Equal(s2)
}

func (s *Schedule) String() string {
	switch {
	case s == nil || s.NonStop:
		return "non-stop"
	case s.Weekly:
		return fmt.Sprintf("%s %s - %s %s %s", s.StartDay, s.Start, s.EndDay, s.End, s.location())
	}
	return fmt.Sprintf("%s - %s %s", s.Start, s.End, s.location())
}

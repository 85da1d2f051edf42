package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/forgo/atelier/internal/model"
)

const (
	calendarProdID  = "-//forgo//atelier//EN"
	calendarLineMax = 75
	icalTimeFormat  = "20060102T150405Z"
)

// CalendarRenderer writes workshops as an iCalendar (RFC 5545) document
type CalendarRenderer struct {
	baseURL string
	now     func() time.Time
}

// NewCalendarRenderer creates a renderer linking events to baseURL
func NewCalendarRenderer(baseURL string, now func() time.Time) *CalendarRenderer {
	if now == nil {
		now = time.Now
	}
	return &CalendarRenderer{baseURL: strings.TrimRight(baseURL, "/"), now: now}
}

// Render returns a VCALENDAR with one VEVENT per workshop
func (c *CalendarRenderer) Render(name string, workshops []*model.Workshop) []byte {
	var sb strings.Builder
	write := foldingWriter(&sb)

	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:" + calendarProdID)
	write("CALSCALE:GREGORIAN")
	write("METHOD:PUBLISH")
	if name != "" {
		write("X-WR-CALNAME:" + EscapeICalText(name))
	}

	stamp := c.now().UTC().Format(icalTimeFormat)
	for _, w := range workshops {
		write("BEGIN:VEVENT")
		write("UID:" + calendarUID(w.ID))
		write("DTSTAMP:" + stamp)
		write("DTSTART:" + w.StartsAt.UTC().Format(icalTimeFormat))
		write("DTEND:" + w.EndsAt.UTC().Format(icalTimeFormat))
		write("SUMMARY:" + EscapeICalText(w.Title))
		if w.Description != nil && *w.Description != "" {
			write("DESCRIPTION:" + EscapeICalText(*w.Description))
		}
		switch {
		case w.Location != nil && *w.Location != "":
			write("LOCATION:" + EscapeICalText(*w.Location))
		case w.IsOnline && w.MeetingURL != nil:
			write("LOCATION:" + EscapeICalText(*w.MeetingURL))
		}
		if c.baseURL != "" {
			write("URL:" + c.baseURL + "/workshops/" + w.ID)
		}
		write("STATUS:" + calendarStatus(w.Status))
		if !w.UpdatedOn.IsZero() {
			write("LAST-MODIFIED:" + w.UpdatedOn.UTC().Format(icalTimeFormat))
		}
		write("END:VEVENT")
	}

	write("END:VCALENDAR")
	return []byte(sb.String())
}

func calendarStatus(s model.WorkshopStatus) string {
	switch s {
	case model.WorkshopStatusCancelled:
		return "CANCELLED"
	case model.WorkshopStatusDraft:
		return "TENTATIVE"
	default:
		return "CONFIRMED"
	}
}

// calendarUID turns "workshop:abc" into "workshop-abc@atelier"
func calendarUID(id string) string {
	return strings.ReplaceAll(id, ":", "-") + "@atelier"
}

var icalTextEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

// EscapeICalText escapes a TEXT property value
func EscapeICalText(s string) string {
	return icalTextEscaper.Replace(s)
}

// foldingWriter returns a line writer that terminates lines with CRLF and
// folds them at 75 octets without splitting a UTF-8 sequence. Continuation
// lines start with a single space.
func foldingWriter(sb *strings.Builder) func(line string) {
	return func(line string) {
		limit := calendarLineMax
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			sb.WriteString(line[:cut])
			sb.WriteString("\r\n ")
			line = line[cut:]
			// the leading space counts toward the next line
			limit = calendarLineMax - 1
		}
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}
}

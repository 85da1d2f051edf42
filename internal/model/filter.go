package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Listing defaults
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// WorkshopFilter is the set of workshop listing filters carried in the
// query string. ParseWorkshopFilter and Encode are inverses over
// normalized query values.
type WorkshopFilter struct {
	FamilyID      string
	TypeID        string
	ClientID      string
	Statuses      []WorkshopStatus
	From          *time.Time
	To            *time.Time
	Online        *bool
	Query         string
	AvailableOnly bool
	Limit         int // 0 means DefaultPageLimit
	Offset        int
}

// Query keys
const (
	filterKeyFamily    = "family"
	filterKeyType      = "type"
	filterKeyClient    = "client"
	filterKeyStatus    = "status"
	filterKeyFrom      = "from"
	filterKeyTo        = "to"
	filterKeyOnline    = "online"
	filterKeyQuery     = "q"
	filterKeyAvailable = "available"
	filterKeyLimit     = "limit"
	filterKeyOffset    = "offset"
)

// ParseWorkshopFilter reads a filter from query values. Empty values are
// ignored. from/to accept RFC 3339 timestamps or YYYY-MM-DD dates (UTC
// midnight). status accepts a comma separated list.
func ParseWorkshopFilter(v url.Values) (WorkshopFilter, []FieldError) {
	var f WorkshopFilter
	var errors []FieldError

	f.FamilyID = strings.TrimSpace(v.Get(filterKeyFamily))
	f.TypeID = strings.TrimSpace(v.Get(filterKeyType))
	f.ClientID = strings.TrimSpace(v.Get(filterKeyClient))
	f.Query = strings.TrimSpace(v.Get(filterKeyQuery))

	if raw := v.Get(filterKeyStatus); raw != "" {
		seen := make(map[WorkshopStatus]bool)
		for _, part := range strings.Split(raw, ",") {
			s := WorkshopStatus(strings.TrimSpace(part))
			if s == "" || seen[s] {
				continue
			}
			if !s.IsValid() {
				errors = append(errors, FieldError{Field: filterKeyStatus, Message: "unknown status '" + string(s) + "'"})
				continue
			}
			seen[s] = true
			f.Statuses = append(f.Statuses, s)
		}
	}

	var ok bool
	if f.From, ok = parseFilterTime(v.Get(filterKeyFrom)); !ok {
		errors = append(errors, FieldError{Field: filterKeyFrom, Message: "from must be RFC 3339 or YYYY-MM-DD"})
	}
	if f.To, ok = parseFilterTime(v.Get(filterKeyTo)); !ok {
		errors = append(errors, FieldError{Field: filterKeyTo, Message: "to must be RFC 3339 or YYYY-MM-DD"})
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		errors = append(errors, FieldError{Field: filterKeyTo, Message: "to must not be before from"})
	}

	if raw := v.Get(filterKeyOnline); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errors = append(errors, FieldError{Field: filterKeyOnline, Message: "online must be true or false"})
		} else {
			f.Online = &b
		}
	}

	if raw := v.Get(filterKeyAvailable); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errors = append(errors, FieldError{Field: filterKeyAvailable, Message: "available must be true or false"})
		} else {
			f.AvailableOnly = b
		}
	}

	if raw := v.Get(filterKeyLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPageLimit {
			errors = append(errors, FieldError{Field: filterKeyLimit, Message: "limit must be between 1 and 100"})
		} else {
			f.Limit = n
		}
	}
	if raw := v.Get(filterKeyOffset); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errors = append(errors, FieldError{Field: filterKeyOffset, Message: "offset must be 0 or greater"})
		} else {
			f.Offset = n
		}
	}

	return f, errors
}

func parseFilterTime(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, true
	}
	return nil, false
}

// Encode writes the filter back to query values, omitting zero fields.
// Times are written in UTC RFC 3339, keeping fractional seconds.
func (f WorkshopFilter) Encode() url.Values {
	v := url.Values{}
	setIf := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}

	setIf(filterKeyFamily, f.FamilyID)
	setIf(filterKeyType, f.TypeID)
	setIf(filterKeyClient, f.ClientID)
	setIf(filterKeyQuery, f.Query)

	if len(f.Statuses) > 0 {
		parts := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			parts[i] = string(s)
		}
		v.Set(filterKeyStatus, strings.Join(parts, ","))
	}
	if f.From != nil {
		v.Set(filterKeyFrom, f.From.UTC().Format(time.RFC3339Nano))
	}
	if f.To != nil {
		v.Set(filterKeyTo, f.To.UTC().Format(time.RFC3339Nano))
	}
	if f.Online != nil {
		v.Set(filterKeyOnline, strconv.FormatBool(*f.Online))
	}
	if f.AvailableOnly {
		v.Set(filterKeyAvailable, "true")
	}
	if f.Limit > 0 {
		v.Set(filterKeyLimit, strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		v.Set(filterKeyOffset, strconv.Itoa(f.Offset))
	}

	return v
}

// EffectiveLimit returns Limit or the default page size
func (f WorkshopFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultPageLimit
	}
	return f.Limit
}

// HasStatus returns true if s is among the requested statuses
func (f WorkshopFilter) HasStatus(s WorkshopStatus) bool {
	for _, st := range f.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

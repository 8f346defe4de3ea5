package dto

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"bakery/internal/core/apperror"
)

// DateLayout is the calendar-date form accepted next to RFC3339.
const DateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or RFC3339. dateOnly reports the first form.
func ParseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// Date is a JSON date in either accepted form.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	t, _, err := ParseDate(s)
	if err != nil {
		return apperror.NewValidationFields(apperror.FieldErrors{"date": "must be YYYY-MM-DD or RFC3339"})
	}
	d.Time = t
	return nil
}

// DateRange is the half-open [date_from, date_to) query window.
// A calendar date_to includes that whole day.
type DateRange struct {
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

// Bounds parses both ends. Either may be nil.
func (r DateRange) Bounds() (from, to *time.Time, err error) {
	fe := apperror.FieldErrors{}
	if r.DateFrom != "" {
		t, _, perr := ParseDate(r.DateFrom)
		if perr != nil {
			fe.Add("date_from", "must be YYYY-MM-DD or RFC3339")
		} else {
			from = &t
		}
	}
	if r.DateTo != "" {
		t, dateOnly, perr := ParseDate(r.DateTo)
		if perr != nil {
			fe.Add("date_to", "must be YYYY-MM-DD or RFC3339")
		} else {
			if dateOnly {
				t = t.AddDate(0, 0, 1)
			}
			to = &t
		}
	}
	if err := fe.Err(); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, apperror.NewValidationFields(apperror.FieldErrors{"date_from": "must be before date_to"})
	}
	return from, to, nil
}

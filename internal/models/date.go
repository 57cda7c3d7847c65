package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DisplayDateLayout is the DD-Mon-YY form operators type in
	DisplayDateLayout = "02-Jan-06"
	// StorageDateLayout is the form dates are persisted in
	StorageDateLayout = "2006-01-02"
)

// Date is a calendar date without time of day. It scans from both DATE columns
// (time.Time) and TEXT columns holding ISO dates.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC
func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Scan implements sql.Scanner
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) parse(s string) error {
	if len(s) > len(StorageDateLayout) {
		s = s[:len(StorageDateLayout)]
	}
	t, err := time.Parse(StorageDateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(StorageDateLayout), nil
}

// String renders the date the way operators enter it
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DisplayDateLayout)
}

// MarshalJSON renders the date as DD-Mon-YY
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts DD-Mon-YY or an ISO date
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DisplayDateLayout, s); err == nil {
		*d = NewDate(t)
		return nil
	}
	return d.parse(s)
}

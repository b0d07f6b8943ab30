package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar day (UTC midnight). The zero Date is "no date": it marshals to null
// and is stored as NULL.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date { return Date{TruncateDay(t)} }

// DateOf parses s as YYYY-MM-DD; an empty string gives the zero Date.
func DateOf(s string) (Date, error) {
	if CleanString(s) == "" {
		return Date{}, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// MustDate is DateOf for literals.
func MustDate(s string) Date {
	d, err := DateOf(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TodayDate() Date { return Date{Today()} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := DateOf(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = NewDate(v)
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("core.Date: cannot scan %T", src)
	}
	return nil
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := DateOf(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

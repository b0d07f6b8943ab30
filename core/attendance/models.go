package attendance

import (
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
)

type (
	Kind   string
	Status string
)

const (
	KindStudent Kind = "student"
	KindTeacher Kind = "teacher"

	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Attended reports whether the subject was there, late or not.
func (s Status) Attended() bool { return s == StatusPresent || s == StatusLate }

// Record is one attendance mark of a student (or teacher) on a day.
type Record struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	SubjectRef string     `json:"subject_ref"`
	GroupRef   string     `json:"group_ref"`
	Date       core.Date  `json:"date"`
	Status     Status     `json:"status"`
	OwnerTag   access.Tag `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (r Record) Owner() access.Tag { return r.OwnerTag }

func (r Record) Key() Key { return Key{Kind: r.Kind, Date: r.Date, GroupRef: r.GroupRef} }

// Key identifies one attendance sheet: every record of a kind, on a day, for a group.
// GroupRef is the class ID for students and empty for teachers.
type Key struct {
	Kind     Kind      `json:"kind"`
	Date     core.Date `json:"date"`
	GroupRef string    `json:"group_ref"`
}

func (k Key) Equal(o Key) bool {
	return k.Kind == o.Kind && k.GroupRef == o.GroupRef && k.Date.Equal(o.Date)
}

// Sheet is the payload of the attendance form: the desired status per subject ID.
type Sheet struct {
	Kind     Kind              `json:"kind" validate:"required,oneof=student teacher"`
	Date     core.Date         `json:"date"`
	GroupRef string            `json:"group_ref" validate:"omitempty,uuid"`
	Marks    map[string]Status `json:"marks" validate:"dive,keys,uuid,endkeys,attstatus"`
}

func (sh Sheet) Key() Key { return Key{Kind: sh.Kind, Date: sh.Date, GroupRef: sh.GroupRef} }

type Filter struct {
	Kind       Kind
	GroupRef   string
	SubjectRef string
	Status     Status
	From       core.Date
	To         core.Date
}

// Match reports whether rec passes every set field of the filter.
func (f Filter) Match(rec Record) bool {
	switch {
	case f.Kind != "" && rec.Kind != f.Kind,
		f.GroupRef != "" && rec.GroupRef != f.GroupRef,
		f.SubjectRef != "" && rec.SubjectRef != f.SubjectRef,
		f.Status != "" && rec.Status != f.Status,
		!f.From.IsZero() && rec.Date.Before(f.From),
		!f.To.IsZero() && rec.Date.After(f.To):
		return false
	}
	return true
}

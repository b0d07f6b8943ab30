package exam

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
)

type Exam struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ClassID      string     `json:"class_id"`
	Subject      string     `json:"subject"`
	ExamDate     core.Date  `json:"exam_date"`
	MaxMarks     float64    `json:"max_marks"`
	PassingMarks float64    `json:"passing_marks"`
	OwnerTag     access.Tag `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (e Exam) Owner() access.Tag { return e.OwnerTag }

// Score is the marks a student obtained in an exam. There is at most one per (student, exam).
type Score struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	ExamID        string     `json:"exam_id"`
	MarksObtained float64    `json:"marks_obtained"`
	Remarks       string     `json:"remarks"`
	OwnerTag      access.Tag `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s Score) Owner() access.Tag { return s.OwnerTag }

// NewExam is the payload used to create or replace an Exam.
type NewExam struct {
	Name         string    `json:"name" validate:"required,notblank"`
	ClassID      string    `json:"class_id" validate:"omitempty,uuid"`
	Subject      string    `json:"subject" validate:"required,notblank"`
	ExamDate     core.Date `json:"exam_date"`
	MaxMarks     float64   `json:"max_marks" validate:"gt=0"`
	PassingMarks float64   `json:"passing_marks" validate:"gte=0"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.ClassID = core.CleanString(ne.ClassID)
	ne.Subject = core.CleanString(ne.Subject)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.PassingMarks > ne.MaxMarks {
		return core.NewFieldError("passing_marks", "passing marks cannot exceed max marks")
	}
	return nil
}

// ScoreEntry is one row of the marks form. A nil Marks means the row was left blank.
type ScoreEntry struct {
	StudentID string   `json:"student_id" validate:"required,uuid"`
	Marks     *float64 `json:"marks"`
	Remarks   string   `json:"remarks"`
}

type SaveScores struct {
	Entries []ScoreEntry `json:"entries" validate:"dive"`
}

type Filter struct {
	ClassID string
	Subject string
	Search  string
}

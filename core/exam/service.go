package exam

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/student"
)

var (
	ErrNotFound        = errors.New("exam not found")
	ErrMarksOutOfRange = errors.New("marks out of range")
	ErrUnknownStudent  = errors.New("unknown student")
)

type Repository interface {
	CreateExam(ctx context.Context, tag access.Tag, e Exam) (Exam, error)
	GetExam(ctx context.Context, tag access.Tag, id string) (Exam, error)
	QueryExams(ctx context.Context, tag access.Tag, filter Filter, ordering []core.DBOrdering) ([]Exam, error)
	UpdateExam(ctx context.Context, tag access.Tag, e Exam) (Exam, error)
	// DeleteExam deletes the exam along with its scores.
	DeleteExam(ctx context.Context, tag access.Tag, id string) error

	// UpsertScores inserts or updates scores keyed on (student, exam) in one transaction.
	UpsertScores(ctx context.Context, tag access.Tag, scores []Score) error
	ScoresForExam(ctx context.Context, tag access.Tag, examID string) ([]Score, error)
	ScoresForStudent(ctx context.Context, tag access.Tag, studentID string) ([]Score, error)
}

type Service struct {
	repo     Repository
	students student.Repository
	validate *validator.Validate
}

func NewService(repo Repository, students student.Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, students: students, validate: validate}
}

func (svc *Service) Create(ctx context.Context, ne NewExam) (Exam, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Exam{}, err
	}
	if err = ne.Validate(svc.validate); err != nil {
		return Exam{}, err
	}
	now := time.Now().UTC()
	e := Exam{OwnerTag: tag, CreatedAt: now}
	apply(&e, ne, now)
	return svc.repo.CreateExam(ctx, tag, e)
}

func (svc *Service) Get(ctx context.Context, id string) (Exam, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Exam{}, err
	}
	return svc.repo.GetExam(ctx, tag, id)
}

func (svc *Service) Query(ctx context.Context, filter Filter, ordering []core.DBOrdering) ([]Exam, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryExams(ctx, tag, filter, ordering)
}

// Update replaces the exam's details. Lowering MaxMarks below an already recorded score is rejected.
func (svc *Service) Update(ctx context.Context, id string, ne NewExam) (Exam, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Exam{}, err
	}
	if err = ne.Validate(svc.validate); err != nil {
		return Exam{}, err
	}
	e, err := svc.repo.GetExam(ctx, tag, id)
	if err != nil {
		return Exam{}, err
	}
	if ne.MaxMarks < e.MaxMarks {
		scores, err := svc.repo.ScoresForExam(ctx, tag, id)
		if err != nil {
			return Exam{}, err
		}
		for _, s := range scores {
			if s.MarksObtained > ne.MaxMarks {
				return Exam{}, core.NewFieldError("max_marks", "max marks cannot be lower than a recorded score")
			}
		}
	}
	apply(&e, ne, time.Now().UTC())
	return svc.repo.UpdateExam(ctx, tag, e)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	tag, err := access.Require(ctx)
	if err != nil {
		return err
	}
	return svc.repo.DeleteExam(ctx, tag, id)
}

func (svc *Service) Scores(ctx context.Context, examID string) ([]Score, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, err = svc.repo.GetExam(ctx, tag, examID); err != nil {
		return nil, err
	}
	return svc.repo.ScoresForExam(ctx, tag, examID)
}

// SaveScores reconciles the marks form of an exam: blank rows are skipped, the others are
// upserted on (student, exam). Rows missing from the form keep their stored score.
// It returns every score of the exam as stored after the write.
func (svc *Service) SaveScores(ctx context.Context, examID string, entries []ScoreEntry) ([]Score, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	if err = svc.validate.Struct(SaveScores{Entries: entries}); err != nil {
		return nil, err
	}
	if !hasMarks(entries) {
		return nil, core.ErrEmptyEntry
	}

	e, err := svc.repo.GetExam(ctx, tag, examID)
	if err != nil {
		return nil, err
	}
	if err = svc.checkStudents(ctx, tag, e, entries); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scores := make([]Score, 0, len(entries))
	seen := make(map[string]int, len(entries))
	var outOfRange []core.FieldError
	for _, entry := range entries {
		if entry.Marks == nil {
			continue
		}
		marks := *entry.Marks
		if marks < 0 || marks > e.MaxMarks {
			outOfRange = append(outOfRange, core.FieldError{
				Field: entry.StudentID,
				Error: fmt.Sprintf("marks must be between 0 and %s", strconv.FormatFloat(e.MaxMarks, 'f', -1, 64)),
			})
			continue
		}
		score := Score{
			StudentID:     entry.StudentID,
			ExamID:        e.ID,
			MarksObtained: marks,
			Remarks:       core.CleanString(entry.Remarks),
			OwnerTag:      tag,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		// last entry wins for a student listed twice
		if i, ok := seen[entry.StudentID]; ok {
			scores[i] = score
			continue
		}
		seen[entry.StudentID] = len(scores)
		scores = append(scores, score)
	}
	if len(outOfRange) > 0 {
		return nil, core.NewValidationError(ErrMarksOutOfRange, outOfRange...)
	}

	if err = svc.repo.UpsertScores(ctx, tag, scores); err != nil {
		return nil, err
	}
	return svc.repo.ScoresForExam(ctx, tag, e.ID)
}

// StudentScores lists every score of a student, across exams.
func (svc *Service) StudentScores(ctx context.Context, studentID string) ([]Score, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	return svc.repo.ScoresForStudent(ctx, tag, studentID)
}

// checkStudents rejects marks for students the owner does not have, or who are not in the
// exam's class when it has one.
func (svc *Service) checkStudents(ctx context.Context, tag access.Tag, e Exam, entries []ScoreEntry) error {
	students, err := svc.students.QueryStudents(ctx, tag, student.Filter{ClassID: e.ClassID}, nil)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(students))
	for _, s := range students {
		known[s.ID] = true
	}

	msg := "student not found"
	if e.ClassID != "" {
		msg = "student is not in this exam's class"
	}
	var unknown []core.FieldError
	for _, entry := range entries {
		if entry.Marks != nil && !known[entry.StudentID] {
			unknown = append(unknown, core.FieldError{Field: entry.StudentID, Error: msg})
		}
	}
	if len(unknown) > 0 {
		return core.NewValidationError(ErrUnknownStudent, unknown...)
	}
	return nil
}

func hasMarks(entries []ScoreEntry) bool {
	for _, entry := range entries {
		if entry.Marks != nil {
			return true
		}
	}
	return false
}

func apply(e *Exam, ne NewExam, now time.Time) {
	e.Name = ne.Name
	e.ClassID = ne.ClassID
	e.Subject = ne.Subject
	e.ExamDate = ne.ExamDate
	e.MaxMarks = ne.MaxMarks
	e.PassingMarks = ne.PassingMarks
	e.UpdatedAt = now
}

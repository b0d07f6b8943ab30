package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/exam"
)

type examRow struct {
	ID           string      `db:"id"`
	OwnerTag     string      `db:"owner_tag"`
	Name         string      `db:"name"`
	ClassID      null.String `db:"class_id"`
	Subject      string      `db:"subject"`
	ExamDate     core.Date   `db:"exam_date"`
	MaxMarks     float64     `db:"max_marks"`
	PassingMarks float64     `db:"passing_marks"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

const examColumns = `id, owner_tag, name, class_id, subject, exam_date, max_marks, passing_marks, created_at, updated_at`

var examOrderColumns = map[string]string{
	"name":       "name",
	"subject":    "subject",
	"exam_date":  "exam_date",
	"max_marks":  "max_marks",
	"created_at": "created_at",
}

func toExamRow(e exam.Exam) examRow {
	return examRow{
		ID:           e.ID,
		OwnerTag:     e.OwnerTag.String(),
		Name:         e.Name,
		ClassID:      null.NewString(e.ClassID, e.ClassID != ""),
		Subject:      e.Subject,
		ExamDate:     e.ExamDate,
		MaxMarks:     e.MaxMarks,
		PassingMarks: e.PassingMarks,
		CreatedAt:    e.CreatedAt.UTC(),
		UpdatedAt:    e.UpdatedAt.UTC(),
	}
}

func (row examRow) exam() exam.Exam {
	return exam.Exam{
		ID:           row.ID,
		Name:         row.Name,
		ClassID:      row.ClassID.String,
		Subject:      row.Subject,
		ExamDate:     row.ExamDate,
		MaxMarks:     row.MaxMarks,
		PassingMarks: row.PassingMarks,
		OwnerTag:     access.Tag(row.OwnerTag),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

type scoreRow struct {
	ID            string      `db:"id"`
	OwnerTag      string      `db:"owner_tag"`
	StudentID     string      `db:"student_id"`
	ExamID        string      `db:"exam_id"`
	MarksObtained float64     `db:"marks_obtained"`
	Remarks       null.String `db:"remarks"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

const scoreColumns = `id, owner_tag, student_id, exam_id, marks_obtained, remarks, created_at, updated_at`

func toScoreRow(s exam.Score) scoreRow {
	return scoreRow{
		ID:            s.ID,
		OwnerTag:      s.OwnerTag.String(),
		StudentID:     s.StudentID,
		ExamID:        s.ExamID,
		MarksObtained: s.MarksObtained,
		Remarks:       null.NewString(s.Remarks, s.Remarks != ""),
		CreatedAt:     s.CreatedAt.UTC(),
		UpdatedAt:     s.UpdatedAt.UTC(),
	}
}

func (row scoreRow) score() exam.Score {
	return exam.Score{
		ID:            row.ID,
		StudentID:     row.StudentID,
		ExamID:        row.ExamID,
		MarksObtained: row.MarksObtained,
		Remarks:       row.Remarks.String,
		OwnerTag:      access.Tag(row.OwnerTag),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

type examRepository struct {
	st *Store
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(st *Store) *examRepository {
	return &examRepository{st: st}
}

func (repo *examRepository) CreateExam(ctx context.Context, tag access.Tag, e exam.Exam) (exam.Exam, error) {
	e.ID = uuid.NewString()
	e.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `INSERT INTO exam (` + examColumns + `) VALUES
			(:id, :owner_tag, :name, :class_id, :subject, :exam_date, :max_marks, :passing_marks, :created_at, :updated_at)`
		_, err := tx.NamedExecContext(ctx, q, toExamRow(e))
		return errors.Wrap(err, "inserting exam")
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

func (repo *examRepository) GetExam(ctx context.Context, tag access.Tag, id string) (exam.Exam, error) {
	if !validID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var row examRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `SELECT `+examColumns+` FROM exam WHERE id = $1 AND owner_tag = $2`, id, tag.String())
		if err != nil {
			return trapNoRowsErr(err, exam.ErrNotFound, "getting exam")
		}
		return nil
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return row.exam(), nil
}

func (repo *examRepository) QueryExams(ctx context.Context, tag access.Tag, filter exam.Filter, ordering []core.DBOrdering) ([]exam.Exam, error) {
	w := newWhere(tag)
	if filter.ClassID != "" {
		if !validID(filter.ClassID) {
			return []exam.Exam{}, nil
		}
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.Subject != "" {
		w.add("subject ILIKE ?", filter.Subject)
	}
	if filter.Search != "" {
		w.add("(name ILIKE ? OR subject ILIKE ?)", likePattern(filter.Search))
	}
	q := `SELECT ` + examColumns + ` FROM exam WHERE ` + w.String() +
		` ORDER BY ` + core.OrderBy(ordering, examOrderColumns, "exam_date DESC NULLS LAST, name ASC")

	var rows []examRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying exams")
	})
	if err != nil {
		return nil, err
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.exam())
	}
	return exams, nil
}

func (repo *examRepository) UpdateExam(ctx context.Context, tag access.Tag, e exam.Exam) (exam.Exam, error) {
	if !validID(e.ID) {
		return exam.Exam{}, exam.ErrNotFound
	}
	e.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `UPDATE exam SET name = :name, class_id = :class_id, subject = :subject, exam_date = :exam_date,
			max_marks = :max_marks, passing_marks = :passing_marks, updated_at = :updated_at
			WHERE id = :id AND owner_tag = :owner_tag`
		return execOne(ctx, tx, q, toExamRow(e), exam.ErrNotFound, "updating exam")
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

// DeleteExam relies on ON DELETE CASCADE for the exam's scores.
func (repo *examRepository) DeleteExam(ctx context.Context, tag access.Tag, id string) error {
	if !validID(id) {
		return exam.ErrNotFound
	}
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return deleteOne(ctx, tx, "exam", id, tag, exam.ErrNotFound)
	})
}

func (repo *examRepository) UpsertScores(ctx context.Context, tag access.Tag, scores []exam.Score) error {
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO score (`+scoreColumns+`) VALUES
			(:id, :owner_tag, :student_id, :exam_id, :marks_obtained, :remarks, :created_at, :updated_at)
			ON CONFLICT ON CONSTRAINT score_student_exam_key DO UPDATE SET
			marks_obtained = EXCLUDED.marks_obtained, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return errors.Wrap(err, "preparing score upsert")
		}
		defer func() { _ = stmt.Close() }()

		for _, s := range scores {
			s.ID = uuid.NewString()
			s.OwnerTag = tag
			if _, err = stmt.ExecContext(ctx, toScoreRow(s)); err != nil {
				return errors.Wrap(err, "upserting score")
			}
		}
		return nil
	})
}

func (repo *examRepository) ScoresForExam(ctx context.Context, tag access.Tag, examID string) ([]exam.Score, error) {
	if !validID(examID) {
		return []exam.Score{}, nil
	}
	return repo.scoresWhere(ctx, tag, "exam_id", examID)
}

func (repo *examRepository) ScoresForStudent(ctx context.Context, tag access.Tag, studentID string) ([]exam.Score, error) {
	if !validID(studentID) {
		return []exam.Score{}, nil
	}
	return repo.scoresWhere(ctx, tag, "student_id", studentID)
}

func (repo *examRepository) scoresWhere(ctx context.Context, tag access.Tag, column, id string) ([]exam.Score, error) {
	w := newWhere(tag)
	w.add(column+" = ?", id)
	q := `SELECT ` + scoreColumns + ` FROM score WHERE ` + w.String() + ` ORDER BY created_at, student_id`

	var rows []scoreRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying scores")
	})
	if err != nil {
		return nil, err
	}
	scores := make([]exam.Score, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, row.score())
	}
	return scores, nil
}

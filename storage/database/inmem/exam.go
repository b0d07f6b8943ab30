package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db}
}

var examFields = map[string]comparator[exam.Exam]{
	"name":       byString(func(e exam.Exam) string { return e.Name }),
	"subject":    byString(func(e exam.Exam) string { return e.Subject }),
	"exam_date":  byTime(func(e exam.Exam) time.Time { return e.ExamDate.Time }),
	"max_marks":  byFloat(func(e exam.Exam) float64 { return e.MaxMarks }),
	"created_at": byTime(func(e exam.Exam) time.Time { return e.CreatedAt }),
}

func (repo *examRepository) CreateExam(_ context.Context, tag access.Tag, e exam.Exam) (exam.Exam, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	e.ID = uuid.NewString()
	e.OwnerTag = tag
	repo.db.exams[e.ID] = &e
	return e, nil
}

func (repo *examRepository) GetExam(_ context.Context, tag access.Tag, id string) (exam.Exam, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.exams[id]; ok && e.OwnerTag == tag {
		return *e, nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) QueryExams(_ context.Context, tag access.Tag, filter exam.Filter, ordering []core.DBOrdering) ([]exam.Exam, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	exams := make([]exam.Exam, 0)
	for _, e := range repo.db.exams {
		if e.OwnerTag != tag {
			continue
		}
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if filter.Subject != "" && !strings.EqualFold(e.Subject, filter.Subject) {
			continue
		}
		if filter.Search != "" && !contains(e.Name, filter.Search) && !contains(e.Subject, filter.Search) {
			continue
		}
		exams = append(exams, *e)
	}
	sortRows(exams, ordering, examFields, func(a, b exam.Exam) int { return -examFields["exam_date"](a, b) })
	return exams, nil
}

func (repo *examRepository) UpdateExam(_ context.Context, tag access.Tag, e exam.Exam) (exam.Exam, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.exams[e.ID]
	if !ok || orig.OwnerTag != tag {
		return exam.Exam{}, exam.ErrNotFound
	}
	e.OwnerTag = tag
	e.CreatedAt = orig.CreatedAt
	repo.db.exams[e.ID] = &e
	return e, nil
}

func (repo *examRepository) DeleteExam(_ context.Context, tag access.Tag, id string) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.exams[id]
	if !ok || e.OwnerTag != tag {
		return exam.ErrNotFound
	}
	delete(repo.db.exams, id)
	for scoreID, sc := range repo.db.scores {
		if sc.ExamID == id {
			delete(repo.db.scores, scoreID)
		}
	}
	return nil
}

func (repo *examRepository) UpsertScores(_ context.Context, tag access.Tag, scores []exam.Score) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	type key struct{ student, exam string }
	existing := make(map[key]*exam.Score)
	for _, sc := range repo.db.scores {
		if sc.OwnerTag == tag {
			existing[key{sc.StudentID, sc.ExamID}] = sc
		}
	}
	for _, sc := range scores {
		sc := sc
		sc.OwnerTag = tag
		if orig, ok := existing[key{sc.StudentID, sc.ExamID}]; ok {
			orig.MarksObtained = sc.MarksObtained
			orig.Remarks = sc.Remarks
			orig.UpdatedAt = sc.UpdatedAt
			continue
		}
		sc.ID = uuid.NewString()
		repo.db.scores[sc.ID] = &sc
		existing[key{sc.StudentID, sc.ExamID}] = &sc
	}
	return nil
}

func (repo *examRepository) ScoresForExam(_ context.Context, tag access.Tag, examID string) ([]exam.Score, error) {
	return repo.scoresWhere(tag, func(sc *exam.Score) bool { return sc.ExamID == examID }), nil
}

func (repo *examRepository) ScoresForStudent(_ context.Context, tag access.Tag, studentID string) ([]exam.Score, error) {
	return repo.scoresWhere(tag, func(sc *exam.Score) bool { return sc.StudentID == studentID }), nil
}

func (repo *examRepository) scoresWhere(tag access.Tag, match func(*exam.Score) bool) []exam.Score {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	scores := make([]exam.Score, 0)
	for _, sc := range repo.db.scores {
		if sc.OwnerTag == tag && match(sc) {
			scores = append(scores, *sc)
		}
	}
	sortRows(scores, nil, nil, func(a, b exam.Score) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.StudentID, b.StudentID)
	})
	return scores
}

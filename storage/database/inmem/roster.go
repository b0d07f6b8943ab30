package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

// Classes

type classRepository struct {
	db *DB
}

var _ classroom.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

var classFields = map[string]comparator[classroom.Class]{
	"name":       byString(func(c classroom.Class) string { return c.Name }),
	"section":    byString(func(c classroom.Class) string { return c.Section }),
	"capacity":   byFloat(func(c classroom.Class) float64 { return float64(c.Capacity) }),
	"created_at": byTime(func(c classroom.Class) time.Time { return c.CreatedAt }),
}

func (repo *classRepository) CreateClass(_ context.Context, tag access.Tag, c classroom.Class) (classroom.Class, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = uuid.NewString()
	c.OwnerTag = tag
	repo.db.classes[c.ID] = &c
	return c, nil
}

func (repo *classRepository) GetClass(_ context.Context, tag access.Tag, id string) (classroom.Class, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.classes[id]; ok && c.OwnerTag == tag {
		return *c, nil
	}
	return classroom.Class{}, classroom.ErrNotFound
}

func (repo *classRepository) QueryClasses(_ context.Context, tag access.Tag, filter classroom.Filter, ordering []core.DBOrdering) ([]classroom.Class, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]classroom.Class, 0)
	for _, c := range repo.db.classes {
		if c.OwnerTag != tag {
			continue
		}
		if filter.ClassTeacherID != "" && c.ClassTeacherID != filter.ClassTeacherID {
			continue
		}
		if filter.Search != "" && !contains(c.Name, filter.Search) && !contains(c.Section, filter.Search) {
			continue
		}
		classes = append(classes, *c)
	}
	sortRows(classes, ordering, classFields, classFields["name"])
	return classes, nil
}

func (repo *classRepository) UpdateClass(_ context.Context, tag access.Tag, c classroom.Class) (classroom.Class, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.classes[c.ID]
	if !ok || orig.OwnerTag != tag {
		return classroom.Class{}, classroom.ErrNotFound
	}
	c.OwnerTag = tag
	c.CreatedAt = orig.CreatedAt
	repo.db.classes[c.ID] = &c
	return c, nil
}

func (repo *classRepository) DeleteClass(_ context.Context, tag access.Tag, id string) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.classes[id]
	if !ok || c.OwnerTag != tag {
		return classroom.ErrNotFound
	}
	delete(repo.db.classes, id)
	// ON DELETE SET NULL
	for _, s := range repo.db.students {
		if s.ClassID == id {
			s.ClassID = ""
		}
	}
	for _, e := range repo.db.exams {
		if e.ClassID == id {
			e.ClassID = ""
		}
	}
	return nil
}

// Students

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

var studentFields = map[string]comparator[student.Student]{
	"name":         byString(func(s student.Student) string { return s.Name }),
	"admission_no": byString(func(s student.Student) string { return s.AdmissionNo }),
	"created_at":   byTime(func(s student.Student) time.Time { return s.CreatedAt }),
}

func (repo *studentRepository) CreateStudent(_ context.Context, tag access.Tag, s student.Student) (student.Student, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = uuid.NewString()
	s.OwnerTag = tag
	repo.db.students[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, tag access.Tag, id string) (student.Student, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.students[id]; ok && s.OwnerTag == tag {
		return *s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, tag access.Tag, filter student.Filter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]student.Student, 0)
	for _, s := range repo.db.students {
		if s.OwnerTag != tag {
			continue
		}
		if filter.ClassID != "" && s.ClassID != filter.ClassID {
			continue
		}
		if filter.Search != "" &&
			!contains(s.Name, filter.Search) &&
			!contains(s.AdmissionNo, filter.Search) &&
			!contains(s.GuardianName, filter.Search) {
			continue
		}
		students = append(students, *s)
	}
	sortRows(students, ordering, studentFields, studentFields["name"])
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, tag access.Tag, s student.Student) (student.Student, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.students[s.ID]
	if !ok || orig.OwnerTag != tag {
		return student.Student{}, student.ErrNotFound
	}
	s.OwnerTag = tag
	s.CreatedAt = orig.CreatedAt
	repo.db.students[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, tag access.Tag, id string) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.students[id]
	if !ok || s.OwnerTag != tag {
		return student.ErrNotFound
	}
	delete(repo.db.students, id)
	// ON DELETE CASCADE
	for scoreID, sc := range repo.db.scores {
		if sc.StudentID == id {
			delete(repo.db.scores, scoreID)
		}
	}
	for feeID, f := range repo.db.fees {
		if f.StudentID == id {
			delete(repo.db.fees, feeID)
		}
	}
	repo.db.deleteAttendanceOf(tag, attendance.KindStudent, id)
	return nil
}

// Teachers

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *DB) *teacherRepository {
	return &teacherRepository{db: db}
}

var teacherFields = map[string]comparator[teacher.Teacher]{
	"name":         byString(func(t teacher.Teacher) string { return t.Name }),
	"subject":      byString(func(t teacher.Teacher) string { return t.Subject }),
	"joining_date": byTime(func(t teacher.Teacher) time.Time { return t.JoiningDate.Time }),
	"base_salary":  byFloat(func(t teacher.Teacher) float64 { return t.BaseSalary.InexactFloat64() }),
	"created_at":   byTime(func(t teacher.Teacher) time.Time { return t.CreatedAt }),
}

func (repo *teacherRepository) CreateTeacher(_ context.Context, tag access.Tag, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	t.ID = uuid.NewString()
	t.OwnerTag = tag
	repo.db.teachers[t.ID] = &t
	return t, nil
}

func (repo *teacherRepository) GetTeacher(_ context.Context, tag access.Tag, id string) (teacher.Teacher, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.teachers[id]; ok && t.OwnerTag == tag {
		return *t, nil
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) QueryTeachers(_ context.Context, tag access.Tag, filter teacher.Filter, ordering []core.DBOrdering) ([]teacher.Teacher, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	teachers := make([]teacher.Teacher, 0)
	for _, t := range repo.db.teachers {
		if t.OwnerTag != tag {
			continue
		}
		if filter.Subject != "" && !contains(t.Subject, filter.Subject) {
			continue
		}
		if filter.Search != "" &&
			!contains(t.Name, filter.Search) &&
			!contains(t.Email, filter.Search) &&
			!contains(t.Subject, filter.Search) {
			continue
		}
		teachers = append(teachers, *t)
	}
	sortRows(teachers, ordering, teacherFields, teacherFields["name"])
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(_ context.Context, tag access.Tag, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.teachers[t.ID]
	if !ok || orig.OwnerTag != tag {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	t.OwnerTag = tag
	t.CreatedAt = orig.CreatedAt
	repo.db.teachers[t.ID] = &t
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(_ context.Context, tag access.Tag, id string) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.teachers[id]
	if !ok || t.OwnerTag != tag {
		return teacher.ErrNotFound
	}
	delete(repo.db.teachers, id)
	for salaryID, s := range repo.db.salaries {
		if s.TeacherID == id {
			delete(repo.db.salaries, salaryID)
		}
	}
	repo.db.deleteAttendanceOf(tag, attendance.KindTeacher, id)
	for _, c := range repo.db.classes {
		if c.ClassTeacherID == id {
			c.ClassTeacherID = ""
		}
	}
	return nil
}

// deleteAttendanceOf drops every attendance mark of a deleted student or teacher.
// The caller holds the write lock.
func (db *DB) deleteAttendanceOf(tag access.Tag, kind attendance.Kind, subjectRef string) {
	for recID, rec := range db.attendance {
		if rec.OwnerTag == tag && rec.Kind == kind && rec.SubjectRef == subjectRef {
			delete(db.attendance, recID)
		}
	}
}

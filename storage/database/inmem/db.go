package inmemdb

import (
	"sync"
	"sync/atomic"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

// DB holds every table in memory behind one lock, so multi-table writes
// (replace a sheet, delete an exam with its scores) happen in one critical section.
type DB struct {
	sync.RWMutex

	users      map[string]*user.User
	classes    map[string]*classroom.Class
	students   map[string]*student.Student
	teachers   map[string]*teacher.Teacher
	exams      map[string]*exam.Exam
	scores     map[string]*exam.Score
	attendance map[string]*attendance.Record
	fees       map[string]*finance.Fee
	salaries   map[string]*finance.Salary

	calls int64
}

func Open() *DB {
	return &DB{
		users:      make(map[string]*user.User),
		classes:    make(map[string]*classroom.Class),
		students:   make(map[string]*student.Student),
		teachers:   make(map[string]*teacher.Teacher),
		exams:      make(map[string]*exam.Exam),
		scores:     make(map[string]*exam.Score),
		attendance: make(map[string]*attendance.Record),
		fees:       make(map[string]*finance.Fee),
		salaries:   make(map[string]*finance.Salary),
	}
}

// Calls returns the number of repository calls served so far.
func (db *DB) Calls() int { return int(atomic.LoadInt64(&db.calls)) }

func (db *DB) hit() { atomic.AddInt64(&db.calls, 1) }

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	fresh := Open()
	db.users = fresh.users
	db.classes = fresh.classes
	db.students = fresh.students
	db.teachers = fresh.teachers
	db.exams = fresh.exams
	db.scores = fresh.scores
	db.attendance = fresh.attendance
	db.fees = fresh.fees
	db.salaries = fresh.salaries
	atomic.StoreInt64(&db.calls, 0)
}

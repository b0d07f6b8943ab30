package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// execOne runs a named statement that must touch exactly one row.
func execOne(ctx context.Context, tx *sqlx.Tx, q string, arg interface{}, notFound error, msg string) error {
	res, err := tx.NamedExecContext(ctx, q, arg)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, msg)
	} else if n == 0 {
		return notFound
	}
	return nil
}

func deleteOne(ctx context.Context, tx *sqlx.Tx, table, id string, tag access.Tag, notFound error) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1 AND owner_tag = $2`, id, tag.String())
	if err != nil {
		return errors.Wrapf(err, "deleting %s", table)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}

// Classes

type classRow struct {
	ID             string      `db:"id"`
	OwnerTag       string      `db:"owner_tag"`
	Name           string      `db:"name"`
	Section        string      `db:"section"`
	ClassTeacherID null.String `db:"class_teacher_id"`
	RoomNumber     string      `db:"room_number"`
	Capacity       int         `db:"capacity"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

const classColumns = `id, owner_tag, name, section, class_teacher_id, room_number, capacity, created_at, updated_at`

var classOrderColumns = map[string]string{
	"name":       "name",
	"section":    "section",
	"capacity":   "capacity",
	"created_at": "created_at",
}

func toClassRow(c classroom.Class) classRow {
	return classRow{
		ID:             c.ID,
		OwnerTag:       c.OwnerTag.String(),
		Name:           c.Name,
		Section:        c.Section,
		ClassTeacherID: null.NewString(c.ClassTeacherID, c.ClassTeacherID != ""),
		RoomNumber:     c.RoomNumber,
		Capacity:       c.Capacity,
		CreatedAt:      c.CreatedAt.UTC(),
		UpdatedAt:      c.UpdatedAt.UTC(),
	}
}

func (row classRow) class() classroom.Class {
	return classroom.Class{
		ID:             row.ID,
		Name:           row.Name,
		Section:        row.Section,
		ClassTeacherID: row.ClassTeacherID.String,
		RoomNumber:     row.RoomNumber,
		Capacity:       row.Capacity,
		OwnerTag:       access.Tag(row.OwnerTag),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

type classRepository struct {
	st *Store
}

var _ classroom.Repository = (*classRepository)(nil)

func NewClassRepository(st *Store) *classRepository {
	return &classRepository{st: st}
}

func (repo *classRepository) CreateClass(ctx context.Context, tag access.Tag, c classroom.Class) (classroom.Class, error) {
	c.ID = uuid.NewString()
	c.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `INSERT INTO class (` + classColumns + `) VALUES
			(:id, :owner_tag, :name, :section, :class_teacher_id, :room_number, :capacity, :created_at, :updated_at)`
		_, err := tx.NamedExecContext(ctx, q, toClassRow(c))
		return errors.Wrap(err, "inserting class")
	})
	if err != nil {
		return classroom.Class{}, err
	}
	return c, nil
}

func (repo *classRepository) GetClass(ctx context.Context, tag access.Tag, id string) (classroom.Class, error) {
	if !validID(id) {
		return classroom.Class{}, classroom.ErrNotFound
	}
	var row classRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `SELECT `+classColumns+` FROM class WHERE id = $1 AND owner_tag = $2`, id, tag.String())
		if err != nil {
			return trapNoRowsErr(err, classroom.ErrNotFound, "getting class")
		}
		return nil
	})
	if err != nil {
		return classroom.Class{}, err
	}
	return row.class(), nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, tag access.Tag, filter classroom.Filter, ordering []core.DBOrdering) ([]classroom.Class, error) {
	w := newWhere(tag)
	if filter.ClassTeacherID != "" {
		if !validID(filter.ClassTeacherID) {
			return []classroom.Class{}, nil
		}
		w.add("class_teacher_id = ?", filter.ClassTeacherID)
	}
	if filter.Search != "" {
		w.add("(name ILIKE ? OR section ILIKE ?)", likePattern(filter.Search))
	}
	q := `SELECT ` + classColumns + ` FROM class WHERE ` + w.String() +
		` ORDER BY ` + core.OrderBy(ordering, classOrderColumns, "name ASC")

	var rows []classRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying classes")
	})
	if err != nil {
		return nil, err
	}
	classes := make([]classroom.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, tag access.Tag, c classroom.Class) (classroom.Class, error) {
	if !validID(c.ID) {
		return classroom.Class{}, classroom.ErrNotFound
	}
	c.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `UPDATE class SET name = :name, section = :section, class_teacher_id = :class_teacher_id,
			room_number = :room_number, capacity = :capacity, updated_at = :updated_at
			WHERE id = :id AND owner_tag = :owner_tag`
		return execOne(ctx, tx, q, toClassRow(c), classroom.ErrNotFound, "updating class")
	})
	if err != nil {
		return classroom.Class{}, err
	}
	return c, nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, tag access.Tag, id string) error {
	if !validID(id) {
		return classroom.ErrNotFound
	}
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return deleteOne(ctx, tx, "class", id, tag, classroom.ErrNotFound)
	})
}

// Students

type studentRow struct {
	ID           string      `db:"id"`
	OwnerTag     string      `db:"owner_tag"`
	Name         string      `db:"name"`
	AdmissionNo  string      `db:"admission_no"`
	ClassID      null.String `db:"class_id"`
	Gender       string      `db:"gender"`
	DateOfBirth  core.Date   `db:"date_of_birth"`
	GuardianName string      `db:"guardian_name"`
	Phone        string      `db:"phone"`
	Email        string      `db:"email"`
	Address      string      `db:"address"`
	PhotoURL     string      `db:"photo_url"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

const studentColumns = `id, owner_tag, name, admission_no, class_id, gender, date_of_birth, guardian_name,
	phone, email, address, photo_url, created_at, updated_at`

var studentOrderColumns = map[string]string{
	"name":         "name",
	"admission_no": "admission_no",
	"created_at":   "created_at",
}

func toStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:           s.ID,
		OwnerTag:     s.OwnerTag.String(),
		Name:         s.Name,
		AdmissionNo:  s.AdmissionNo,
		ClassID:      null.NewString(s.ClassID, s.ClassID != ""),
		Gender:       s.Gender,
		DateOfBirth:  s.DateOfBirth,
		GuardianName: s.GuardianName,
		Phone:        s.Phone,
		Email:        s.Email,
		Address:      s.Address,
		PhotoURL:     s.PhotoURL,
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
	}
}

func (row studentRow) student() student.Student {
	return student.Student{
		ID:           row.ID,
		Name:         row.Name,
		AdmissionNo:  row.AdmissionNo,
		ClassID:      row.ClassID.String,
		Gender:       row.Gender,
		DateOfBirth:  row.DateOfBirth,
		GuardianName: row.GuardianName,
		Phone:        row.Phone,
		Email:        row.Email,
		Address:      row.Address,
		PhotoURL:     row.PhotoURL,
		OwnerTag:     access.Tag(row.OwnerTag),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

type studentRepository struct {
	st *Store
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(st *Store) *studentRepository {
	return &studentRepository{st: st}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, tag access.Tag, s student.Student) (student.Student, error) {
	s.ID = uuid.NewString()
	s.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `INSERT INTO student (` + studentColumns + `) VALUES
			(:id, :owner_tag, :name, :admission_no, :class_id, :gender, :date_of_birth, :guardian_name,
			:phone, :email, :address, :photo_url, :created_at, :updated_at)`
		_, err := tx.NamedExecContext(ctx, q, toStudentRow(s))
		return errors.Wrap(err, "inserting student")
	})
	if err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, tag access.Tag, id string) (student.Student, error) {
	if !validID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `SELECT `+studentColumns+` FROM student WHERE id = $1 AND owner_tag = $2`, id, tag.String())
		if err != nil {
			return trapNoRowsErr(err, student.ErrNotFound, "getting student")
		}
		return nil
	})
	if err != nil {
		return student.Student{}, err
	}
	return row.student(), nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, tag access.Tag, filter student.Filter, ordering []core.DBOrdering) ([]student.Student, error) {
	w := newWhere(tag)
	if filter.ClassID != "" {
		if !validID(filter.ClassID) {
			return []student.Student{}, nil
		}
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.Search != "" {
		w.add("(name ILIKE ? OR admission_no ILIKE ? OR guardian_name ILIKE ?)", likePattern(filter.Search))
	}
	q := `SELECT ` + studentColumns + ` FROM student WHERE ` + w.String() +
		` ORDER BY ` + core.OrderBy(ordering, studentOrderColumns, "name ASC")

	var rows []studentRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying students")
	})
	if err != nil {
		return nil, err
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, tag access.Tag, s student.Student) (student.Student, error) {
	if !validID(s.ID) {
		return student.Student{}, student.ErrNotFound
	}
	s.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `UPDATE student SET name = :name, admission_no = :admission_no, class_id = :class_id, gender = :gender,
			date_of_birth = :date_of_birth, guardian_name = :guardian_name, phone = :phone, email = :email,
			address = :address, photo_url = :photo_url, updated_at = :updated_at
			WHERE id = :id AND owner_tag = :owner_tag`
		return execOne(ctx, tx, q, toStudentRow(s), student.ErrNotFound, "updating student")
	})
	if err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, tag access.Tag, id string) error {
	if !validID(id) {
		return student.ErrNotFound
	}
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		if err := deleteAttendanceOf(ctx, tx, tag, attendance.KindStudent, id); err != nil {
			return err
		}
		return deleteOne(ctx, tx, "student", id, tag, student.ErrNotFound)
	})
}

// Teachers

type teacherRow struct {
	ID            string          `db:"id"`
	OwnerTag      string          `db:"owner_tag"`
	Name          string          `db:"name"`
	Email         string          `db:"email"`
	Phone         string          `db:"phone"`
	Subject       string          `db:"subject"`
	Qualification string          `db:"qualification"`
	JoiningDate   core.Date       `db:"joining_date"`
	BaseSalary    decimal.Decimal `db:"base_salary"`
	PhotoURL      string          `db:"photo_url"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

const teacherColumns = `id, owner_tag, name, email, phone, subject, qualification, joining_date, base_salary,
	photo_url, created_at, updated_at`

var teacherOrderColumns = map[string]string{
	"name":         "name",
	"subject":      "subject",
	"joining_date": "joining_date",
	"base_salary":  "base_salary",
	"created_at":   "created_at",
}

func toTeacherRow(t teacher.Teacher) teacherRow {
	return teacherRow{
		ID:            t.ID,
		OwnerTag:      t.OwnerTag.String(),
		Name:          t.Name,
		Email:         t.Email,
		Phone:         t.Phone,
		Subject:       t.Subject,
		Qualification: t.Qualification,
		JoiningDate:   t.JoiningDate,
		BaseSalary:    t.BaseSalary,
		PhotoURL:      t.PhotoURL,
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
	}
}

func (row teacherRow) teacher() teacher.Teacher {
	return teacher.Teacher{
		ID:            row.ID,
		Name:          row.Name,
		Email:         row.Email,
		Phone:         row.Phone,
		Subject:       row.Subject,
		Qualification: row.Qualification,
		JoiningDate:   row.JoiningDate,
		BaseSalary:    row.BaseSalary,
		PhotoURL:      row.PhotoURL,
		OwnerTag:      access.Tag(row.OwnerTag),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

type teacherRepository struct {
	st *Store
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(st *Store) *teacherRepository {
	return &teacherRepository{st: st}
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, tag access.Tag, t teacher.Teacher) (teacher.Teacher, error) {
	t.ID = uuid.NewString()
	t.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `INSERT INTO teacher (` + teacherColumns + `) VALUES
			(:id, :owner_tag, :name, :email, :phone, :subject, :qualification, :joining_date, :base_salary,
			:photo_url, :created_at, :updated_at)`
		_, err := tx.NamedExecContext(ctx, q, toTeacherRow(t))
		return errors.Wrap(err, "inserting teacher")
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return t, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, tag access.Tag, id string) (teacher.Teacher, error) {
	if !validID(id) {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	var row teacherRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `SELECT `+teacherColumns+` FROM teacher WHERE id = $1 AND owner_tag = $2`, id, tag.String())
		if err != nil {
			return trapNoRowsErr(err, teacher.ErrNotFound, "getting teacher")
		}
		return nil
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return row.teacher(), nil
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, tag access.Tag, filter teacher.Filter, ordering []core.DBOrdering) ([]teacher.Teacher, error) {
	w := newWhere(tag)
	if filter.Subject != "" {
		w.add("subject ILIKE ?", likePattern(filter.Subject))
	}
	if filter.Search != "" {
		w.add("(name ILIKE ? OR email ILIKE ? OR subject ILIKE ?)", likePattern(filter.Search))
	}
	q := `SELECT ` + teacherColumns + ` FROM teacher WHERE ` + w.String() +
		` ORDER BY ` + core.OrderBy(ordering, teacherOrderColumns, "name ASC")

	var rows []teacherRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying teachers")
	})
	if err != nil {
		return nil, err
	}
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, row.teacher())
	}
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, tag access.Tag, t teacher.Teacher) (teacher.Teacher, error) {
	if !validID(t.ID) {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	t.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `UPDATE teacher SET name = :name, email = :email, phone = :phone, subject = :subject,
			qualification = :qualification, joining_date = :joining_date, base_salary = :base_salary,
			photo_url = :photo_url, updated_at = :updated_at
			WHERE id = :id AND owner_tag = :owner_tag`
		return execOne(ctx, tx, q, toTeacherRow(t), teacher.ErrNotFound, "updating teacher")
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, tag access.Tag, id string) error {
	if !validID(id) {
		return teacher.ErrNotFound
	}
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE class SET class_teacher_id = NULL WHERE class_teacher_id = $1 AND owner_tag = $2`, id, tag.String()); err != nil {
			return errors.Wrap(err, "unassigning class teacher")
		}
		if err := deleteAttendanceOf(ctx, tx, tag, attendance.KindTeacher, id); err != nil {
			return err
		}
		return deleteOne(ctx, tx, "teacher", id, tag, teacher.ErrNotFound)
	})
}

// deleteAttendanceOf drops the attendance marks of a deleted student or teacher;
// subject_ref points at either table so it carries no foreign key.
func deleteAttendanceOf(ctx context.Context, tx *sqlx.Tx, tag access.Tag, kind attendance.Kind, subjectRef string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE owner_tag = $1 AND kind = $2 AND subject_ref = $3`, tag.String(), string(kind), subjectRef)
	return errors.Wrap(err, "deleting attendance")
}

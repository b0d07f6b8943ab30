package attendance_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/tests"
)

func statuses(records []attendance.Record) map[string]attendance.Status {
	m := make(map[string]attendance.Status, len(records))
	for _, rec := range records {
		m[rec.SubjectRef] = rec.Status
	}
	return m
}

// classOf creates a class with n students for the owner of ctx.
func classOf(t *testing.T, env *testutil.Env, ctx context.Context, name string, n int) (classroom.Class, []string) {
	class, err := env.ClassSvc.Create(ctx, classroom.NewClass{Name: name})
	require.NoError(t, err)
	ids := make([]string, n)
	for i := range ids {
		s, err := env.StudentSvc.Create(ctx, student.NewStudent{Name: fmt.Sprintf("%s student %d", name, i+1), ClassID: class.ID})
		require.NoError(t, err)
		ids[i] = s.ID
	}
	return class, ids
}

func TestService_Reconcile(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("head@test.cd")

	class5A, studs := classOf(t, env, ctx, "5A", 3)
	day := core.MustDate("2024-03-01")
	s1, s2, s3 := studs[0], studs[1], studs[2]

	sheet := attendance.Sheet{
		Kind:     attendance.KindStudent,
		Date:     day,
		GroupRef: class5A.ID,
		Marks: map[string]attendance.Status{
			s1: attendance.StatusPresent,
			s2: attendance.StatusAbsent,
			s3: attendance.StatusLate,
		},
	}
	records, err := env.AttendanceSvc.Reconcile(ctx, sheet)
	require.NoError(t, err)
	assert.Equal(t, sheet.Marks, statuses(records))

	// the third student is dropped from the key, not left stale
	sheet.Marks = map[string]attendance.Status{
		s1: attendance.StatusPresent,
		s2: attendance.StatusPresent,
	}
	records, err = env.AttendanceSvc.Reconcile(ctx, sheet)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, sheet.Marks, statuses(records))

	stored, err := env.AttendanceSvc.ForKey(ctx, sheet.Key())
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// other days of the class are untouched
	other := sheet
	other.Date = core.MustDate("2024-03-02")
	other.Marks = map[string]attendance.Status{s3: attendance.StatusAbsent}
	_, err = env.AttendanceSvc.Reconcile(ctx, other)
	require.NoError(t, err)
	stored, err = env.AttendanceSvc.ForKey(ctx, sheet.Key())
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	all, err := env.AttendanceSvc.Query(ctx, attendance.Filter{GroupRef: class5A.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// After any reconcile the stored sheet equals the desired marks exactly.
func TestService_Reconcile_random(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("head@test.cd")
	rnd := rand.New(rand.NewSource(7))

	class5A, pool := classOf(t, env, ctx, "5A", 12)
	key := attendance.Key{Kind: attendance.KindStudent, Date: core.MustDate("2024-03-01"), GroupRef: class5A.ID}

	for i := 0; i < 100; i++ {
		marks := make(map[string]attendance.Status)
		for _, subject := range pool {
			if rnd.Intn(2) == 0 {
				marks[subject] = attendance.Statuses[rnd.Intn(len(attendance.Statuses))]
			}
		}
		if len(marks) == 0 {
			marks[pool[0]] = attendance.StatusPresent
		}

		sheet := attendance.Sheet{Kind: key.Kind, Date: key.Date, GroupRef: key.GroupRef, Marks: marks}
		_, err := env.AttendanceSvc.Reconcile(ctx, sheet)
		require.NoError(t, err)

		stored, err := env.AttendanceSvc.ForKey(ctx, key)
		require.NoError(t, err)
		require.Len(t, stored, len(marks))
		require.Equal(t, marks, statuses(stored))
	}
}

func TestService_Reconcile_errors(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("head@test.cd")
	day := core.MustDate("2024-03-01")
	classID, subject := uuid.NewString(), uuid.NewString()
	marks := map[string]attendance.Status{subject: attendance.StatusPresent}

	tests := []struct {
		name    string
		ctx     context.Context
		sheet   attendance.Sheet
		wantErr error
	}{
		{name: "no owner", ctx: context.Background(), sheet: attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: classID, Marks: marks}, wantErr: access.ErrNoOwner},
		{name: "empty", ctx: ctx, sheet: attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: classID}, wantErr: core.ErrEmptyEntry},
		{name: "no date", ctx: ctx, sheet: attendance.Sheet{Kind: attendance.KindStudent, GroupRef: classID, Marks: marks}},
		{name: "bad kind", ctx: ctx, sheet: attendance.Sheet{Kind: "parent", Date: day, GroupRef: classID, Marks: marks}},
		{name: "student without class", ctx: ctx, sheet: attendance.Sheet{Kind: attendance.KindStudent, Date: day, Marks: marks}},
		{name: "teacher with class", ctx: ctx, sheet: attendance.Sheet{Kind: attendance.KindTeacher, Date: day, GroupRef: classID, Marks: marks}},
		{name: "bad status", ctx: ctx, sheet: attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: classID, Marks: map[string]attendance.Status{subject: "sick"}}},
		{name: "bad subject", ctx: ctx, sheet: attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: classID, Marks: map[string]attendance.Status{"amani": attendance.StatusPresent}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.DB.Reset()
			_, err := env.AttendanceSvc.Reconcile(tt.ctx, tt.sheet)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
			}
			assert.Equal(t, 0, env.DB.Calls())
		})
	}
}

func TestService_Reconcile_roster(t *testing.T) {
	env := testutil.NewEnv()
	head := testutil.Owner("head@test.cd")
	rival := testutil.Owner("rival@test.cd")
	day := core.MustDate("2024-03-01")

	class5A, studs := classOf(t, env, head, "5A", 2)
	_, others := classOf(t, env, head, "5B", 1)
	rivalClass, rivalStuds := classOf(t, env, rival, "6A", 1)
	juma, err := env.TeacherSvc.Create(head, teacher.NewTeacher{Name: "Juma"})
	require.NoError(t, err)
	zawadi, err := env.TeacherSvc.Create(rival, teacher.NewTeacher{Name: "Zawadi"})
	require.NoError(t, err)

	madeUp := uuid.NewString()
	tests := []struct {
		name      string
		sheet     attendance.Sheet
		wantField string
		wantErr   error
	}{
		{
			name:      "made-up class",
			sheet:     attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: uuid.NewString(), Marks: map[string]attendance.Status{studs[0]: attendance.StatusPresent}},
			wantField: "group_ref",
		},
		{
			name:      "other owner's class",
			sheet:     attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: rivalClass.ID, Marks: map[string]attendance.Status{rivalStuds[0]: attendance.StatusPresent}},
			wantField: "group_ref",
		},
		{
			name:      "other owner's student",
			sheet:     attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: class5A.ID, Marks: map[string]attendance.Status{studs[0]: attendance.StatusPresent, rivalStuds[0]: attendance.StatusAbsent}},
			wantField: rivalStuds[0],
			wantErr:   attendance.ErrUnknownSubject,
		},
		{
			name:      "made-up student",
			sheet:     attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: class5A.ID, Marks: map[string]attendance.Status{madeUp: attendance.StatusAbsent}},
			wantField: madeUp,
			wantErr:   attendance.ErrUnknownSubject,
		},
		{
			name:      "student of another class",
			sheet:     attendance.Sheet{Kind: attendance.KindStudent, Date: day, GroupRef: class5A.ID, Marks: map[string]attendance.Status{others[0]: attendance.StatusLate}},
			wantField: others[0],
			wantErr:   attendance.ErrUnknownSubject,
		},
		{
			name:      "other owner's teacher",
			sheet:     attendance.Sheet{Kind: attendance.KindTeacher, Date: day, Marks: map[string]attendance.Status{juma.ID: attendance.StatusPresent, zawadi.ID: attendance.StatusPresent}},
			wantField: zawadi.ID,
			wantErr:   attendance.ErrUnknownSubject,
		},
		{
			name:      "student marked as teacher",
			sheet:     attendance.Sheet{Kind: attendance.KindTeacher, Date: day, Marks: map[string]attendance.Status{studs[1]: attendance.StatusPresent}},
			wantField: studs[1],
			wantErr:   attendance.ErrUnknownSubject,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.AttendanceSvc.Reconcile(head, tt.sheet)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}

	// nothing was written for either owner
	for _, ctx := range []context.Context{head, rival} {
		all, err := env.AttendanceSvc.Query(ctx, attendance.Filter{})
		require.NoError(t, err)
		assert.Empty(t, all)
	}
}

func TestService_Reconcile_teacher(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("head@test.cd")
	juma, err := env.TeacherSvc.Create(ctx, teacher.NewTeacher{Name: "Juma"})
	require.NoError(t, err)

	records, err := env.AttendanceSvc.Reconcile(ctx, attendance.Sheet{
		Kind:  attendance.KindTeacher,
		Date:  core.MustDate("2024-03-01"),
		Marks: map[string]attendance.Status{juma.ID: attendance.StatusLate},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].GroupRef)
	assert.True(t, records[0].Status.Attended())

	// deleting the teacher drops their marks
	require.NoError(t, env.TeacherSvc.Delete(ctx, juma.ID))
	records, err = env.AttendanceSvc.Query(ctx, attendance.Filter{Kind: attendance.KindTeacher})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestService_isolation(t *testing.T) {
	env := testutil.NewEnv()
	head := testutil.Owner("head@test.cd")
	other := testutil.Owner("Other@Test.cd")
	class5A, studs := classOf(t, env, head, "5A", 1)
	otherClass, otherStuds := classOf(t, env, other, "5A", 1)
	day := core.MustDate("2024-03-01")
	key := attendance.Key{Kind: attendance.KindStudent, Date: day, GroupRef: class5A.ID}

	records, err := env.AttendanceSvc.Reconcile(head, attendance.Sheet{
		Kind: key.Kind, Date: key.Date, GroupRef: key.GroupRef,
		Marks: map[string]attendance.Status{studs[0]: attendance.StatusAbsent},
	})
	require.NoError(t, err)

	// same day, other owner: separate sheets
	_, err = env.AttendanceSvc.Reconcile(other, attendance.Sheet{
		Kind: key.Kind, Date: key.Date, GroupRef: otherClass.ID,
		Marks: map[string]attendance.Status{otherStuds[0]: attendance.StatusPresent},
	})
	require.NoError(t, err)

	stored, err := env.AttendanceSvc.ForKey(head, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]attendance.Status{studs[0]: attendance.StatusAbsent}, statuses(stored))
	stored, err = env.AttendanceSvc.ForKey(other, key)
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.Equal(t, attendance.ErrNotFound, env.AttendanceSvc.Delete(other, records[0].ID))
	require.NoError(t, env.AttendanceSvc.Delete(head, records[0].ID))
	stored, err = env.AttendanceSvc.ForKey(head, key)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("head@test.cd")

	_, err := env.AttendanceSvc.Query(ctx, attendance.Filter{Status: "sick"})
	assert.True(t, core.IsValidationError(err))
	_, err = env.AttendanceSvc.Query(ctx, attendance.Filter{From: core.MustDate("2024-03-02"), To: core.MustDate("2024-03-01")})
	assert.True(t, core.IsValidationError(err))
	_, err = env.AttendanceSvc.Query(context.Background(), attendance.Filter{})
	assert.Equal(t, access.ErrNoOwner, err)
}

package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) ReplaceForKey(_ context.Context, tag access.Tag, key attendance.Key, records []attendance.Record) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	current := make(map[string]*attendance.Record)
	for _, rec := range repo.db.attendance {
		if rec.OwnerTag == tag && rec.Key().Equal(key) {
			current[rec.SubjectRef] = rec
		}
	}

	listed := make(map[string]bool, len(records))
	for _, rec := range records {
		rec := rec
		listed[rec.SubjectRef] = true
		if orig, ok := current[rec.SubjectRef]; ok {
			orig.Status = rec.Status
			orig.UpdatedAt = rec.UpdatedAt
			continue
		}
		rec.ID = uuid.NewString()
		rec.OwnerTag = tag
		rec.Kind, rec.Date, rec.GroupRef = key.Kind, key.Date, key.GroupRef
		repo.db.attendance[rec.ID] = &rec
		current[rec.SubjectRef] = &rec
	}
	for subject, rec := range current {
		if !listed[subject] {
			delete(repo.db.attendance, rec.ID)
		}
	}
	return nil
}

func (repo *attendanceRepository) ForKey(_ context.Context, tag access.Tag, key attendance.Key) ([]attendance.Record, error) {
	return repo.where(tag, func(rec *attendance.Record) bool { return rec.Key().Equal(key) }), nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, tag access.Tag, filter attendance.Filter) ([]attendance.Record, error) {
	return repo.where(tag, func(rec *attendance.Record) bool { return filter.Match(*rec) }), nil
}

func (repo *attendanceRepository) DeleteRecord(_ context.Context, tag access.Tag, id string) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.attendance[id]
	if !ok || rec.OwnerTag != tag {
		return attendance.ErrNotFound
	}
	delete(repo.db.attendance, id)
	return nil
}

// where returns the matching records, newest day first, then by subject.
func (repo *attendanceRepository) where(tag access.Tag, match func(*attendance.Record) bool) []attendance.Record {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.attendance {
		if rec.OwnerTag == tag && match(rec) {
			records = append(records, *rec)
		}
	}
	sortRows(records, nil, nil, func(a, b attendance.Record) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		if c := strings.Compare(a.GroupRef, b.GroupRef); c != 0 {
			return c
		}
		return strings.Compare(a.SubjectRef, b.SubjectRef)
	})
	return records
}

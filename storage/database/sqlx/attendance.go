package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRow struct {
	ID         string    `db:"id"`
	OwnerTag   string    `db:"owner_tag"`
	Kind       string    `db:"kind"`
	SubjectRef string    `db:"subject_ref"`
	GroupRef   string    `db:"group_ref"`
	Date       core.Date `db:"date"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

const attendanceColumns = `id, owner_tag, kind, subject_ref, group_ref, date, status, created_at, updated_at`

func toAttendanceRow(rec attendance.Record) attendanceRow {
	return attendanceRow{
		ID:         rec.ID,
		OwnerTag:   rec.OwnerTag.String(),
		Kind:       string(rec.Kind),
		SubjectRef: rec.SubjectRef,
		GroupRef:   rec.GroupRef,
		Date:       rec.Date,
		Status:     string(rec.Status),
		CreatedAt:  rec.CreatedAt.UTC(),
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}
}

func (row attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID:         row.ID,
		Kind:       attendance.Kind(row.Kind),
		SubjectRef: row.SubjectRef,
		GroupRef:   row.GroupRef,
		Date:       row.Date,
		Status:     attendance.Status(row.Status),
		OwnerTag:   access.Tag(row.OwnerTag),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

type attendanceRepository struct {
	st *Store
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(st *Store) *attendanceRepository {
	return &attendanceRepository{st: st}
}

// ReplaceForKey upserts the listed subjects first and only then deletes the unlisted ones,
// all in one transaction: a failure leaves the previous sheet untouched.
func (repo *attendanceRepository) ReplaceForKey(ctx context.Context, tag access.Tag, key attendance.Key, records []attendance.Record) error {
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO attendance (`+attendanceColumns+`) VALUES
			(:id, :owner_tag, :kind, :subject_ref, :group_ref, :date, :status, :created_at, :updated_at)
			ON CONFLICT ON CONSTRAINT attendance_key DO UPDATE SET
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return errors.Wrap(err, "preparing attendance upsert")
		}
		defer func() { _ = stmt.Close() }()

		subjects := make([]string, 0, len(records))
		for _, rec := range records {
			rec.ID = uuid.NewString()
			rec.OwnerTag = tag
			rec.Kind, rec.Date, rec.GroupRef = key.Kind, key.Date, key.GroupRef
			if _, err = stmt.ExecContext(ctx, toAttendanceRow(rec)); err != nil {
				return errors.Wrap(err, "upserting attendance")
			}
			subjects = append(subjects, rec.SubjectRef)
		}

		q := `DELETE FROM attendance WHERE owner_tag = $1 AND kind = $2 AND date = $3 AND group_ref = $4
			AND NOT (subject_ref::text = ANY($5))`
		_, err = tx.ExecContext(ctx, q, tag.String(), string(key.Kind), key.Date, key.GroupRef, pq.Array(subjects))
		return errors.Wrap(err, "deleting superseded attendance")
	})
}

func (repo *attendanceRepository) ForKey(ctx context.Context, tag access.Tag, key attendance.Key) ([]attendance.Record, error) {
	w := newWhere(tag)
	w.add("kind = ?", string(key.Kind))
	w.add("date = ?", key.Date)
	w.add("group_ref = ?", key.GroupRef)
	return repo.query(ctx, tag, w)
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, tag access.Tag, filter attendance.Filter) ([]attendance.Record, error) {
	w := newWhere(tag)
	if filter.Kind != "" {
		w.add("kind = ?", string(filter.Kind))
	}
	if filter.GroupRef != "" {
		w.add("group_ref = ?", filter.GroupRef)
	}
	if filter.SubjectRef != "" {
		if !validID(filter.SubjectRef) {
			return []attendance.Record{}, nil
		}
		w.add("subject_ref = ?", filter.SubjectRef)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("date <= ?", filter.To)
	}
	return repo.query(ctx, tag, w)
}

func (repo *attendanceRepository) query(ctx context.Context, tag access.Tag, w *where) ([]attendance.Record, error) {
	q := `SELECT ` + attendanceColumns + ` FROM attendance WHERE ` + w.String() +
		` ORDER BY date DESC, group_ref, subject_ref`

	var rows []attendanceRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying attendance")
	})
	if err != nil {
		return nil, err
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, tag access.Tag, id string) error {
	if !validID(id) {
		return attendance.ErrNotFound
	}
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return deleteOne(ctx, tx, "attendance", id, tag, attendance.ErrNotFound)
	})
}

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
	"github.com/trezcool/shule/core/finance"
)

const salaryPeriodConstraint = "salary_teacher_period_key"

// Fees

type feeRow struct {
	ID          string          `db:"id"`
	OwnerTag    string          `db:"owner_tag"`
	StudentID   string          `db:"student_id"`
	FeeType     string          `db:"fee_type"`
	Amount      decimal.Decimal `db:"amount"`
	AmountPaid  decimal.Decimal `db:"amount_paid"`
	DueDate     core.Date       `db:"due_date"`
	Status      string          `db:"status"`
	PaymentMode string          `db:"payment_mode"`
	PaymentDate core.Date       `db:"payment_date"`
	Remarks     null.String     `db:"remarks"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

const feeColumns = `id, owner_tag, student_id, fee_type, amount, amount_paid, due_date, status, payment_mode,
	payment_date, remarks, created_at, updated_at`

var feeOrderColumns = map[string]string{
	"due_date":   "due_date",
	"amount":     "amount",
	"status":     "status",
	"fee_type":   "fee_type",
	"created_at": "created_at",
}

func toFeeRow(f finance.Fee) feeRow {
	return feeRow{
		ID:          f.ID,
		OwnerTag:    f.OwnerTag.String(),
		StudentID:   f.StudentID,
		FeeType:     f.FeeType,
		Amount:      f.Amount,
		AmountPaid:  f.AmountPaid,
		DueDate:     f.DueDate,
		Status:      string(f.Status),
		PaymentMode: string(f.PaymentMode),
		PaymentDate: f.PaymentDate,
		Remarks:     null.NewString(f.Remarks, f.Remarks != ""),
		CreatedAt:   f.CreatedAt.UTC(),
		UpdatedAt:   f.UpdatedAt.UTC(),
	}
}

func (row feeRow) fee() finance.Fee {
	return finance.Fee{
		ID:          row.ID,
		StudentID:   row.StudentID,
		FeeType:     row.FeeType,
		Amount:      row.Amount,
		AmountPaid:  row.AmountPaid,
		DueDate:     row.DueDate,
		Status:      finance.Status(row.Status),
		PaymentMode: finance.PaymentMode(row.PaymentMode),
		PaymentDate: row.PaymentDate,
		Remarks:     row.Remarks.String,
		OwnerTag:    access.Tag(row.OwnerTag),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// Salaries

type salaryRow struct {
	ID          string          `db:"id"`
	OwnerTag    string          `db:"owner_tag"`
	TeacherID   string          `db:"teacher_id"`
	Amount      decimal.Decimal `db:"amount"`
	Period      string          `db:"period"`
	Status      string          `db:"status"`
	PaymentMode string          `db:"payment_mode"`
	PaymentDate core.Date       `db:"payment_date"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

const salaryColumns = `id, owner_tag, teacher_id, amount, period, status, payment_mode, payment_date, created_at, updated_at`

var salaryOrderColumns = map[string]string{
	"period":     "period",
	"amount":     "amount",
	"status":     "status",
	"created_at": "created_at",
}

func toSalaryRow(s finance.Salary) salaryRow {
	return salaryRow{
		ID:          s.ID,
		OwnerTag:    s.OwnerTag.String(),
		TeacherID:   s.TeacherID,
		Amount:      s.Amount,
		Period:      s.Period,
		Status:      string(s.Status),
		PaymentMode: string(s.PaymentMode),
		PaymentDate: s.PaymentDate,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func (row salaryRow) salary() finance.Salary {
	return finance.Salary{
		ID:          row.ID,
		TeacherID:   row.TeacherID,
		Amount:      row.Amount,
		Period:      row.Period,
		Status:      finance.Status(row.Status),
		PaymentMode: finance.PaymentMode(row.PaymentMode),
		PaymentDate: row.PaymentDate,
		OwnerTag:    access.Tag(row.OwnerTag),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type financeRepository struct {
	st *Store
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(st *Store) *financeRepository {
	return &financeRepository{st: st}
}

func (repo *financeRepository) CreateFee(ctx context.Context, tag access.Tag, f finance.Fee) (finance.Fee, error) {
	f.ID = uuid.NewString()
	f.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `INSERT INTO fee (` + feeColumns + `) VALUES
			(:id, :owner_tag, :student_id, :fee_type, :amount, :amount_paid, :due_date, :status, :payment_mode,
			:payment_date, :remarks, :created_at, :updated_at)`
		_, err := tx.NamedExecContext(ctx, q, toFeeRow(f))
		return errors.Wrap(err, "inserting fee")
	})
	if err != nil {
		return finance.Fee{}, err
	}
	return f, nil
}

func (repo *financeRepository) GetFee(ctx context.Context, tag access.Tag, id string) (finance.Fee, error) {
	if !validID(id) {
		return finance.Fee{}, finance.ErrFeeNotFound
	}
	var row feeRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `SELECT `+feeColumns+` FROM fee WHERE id = $1 AND owner_tag = $2`, id, tag.String())
		if err != nil {
			return trapNoRowsErr(err, finance.ErrFeeNotFound, "getting fee")
		}
		return nil
	})
	if err != nil {
		return finance.Fee{}, err
	}
	return row.fee(), nil
}

func (repo *financeRepository) QueryFees(ctx context.Context, tag access.Tag, filter finance.FeeFilter, ordering []core.DBOrdering) ([]finance.Fee, error) {
	w := newWhere(tag)
	if filter.StudentID != "" {
		if !validID(filter.StudentID) {
			return []finance.Fee{}, nil
		}
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.FeeType != "" {
		w.add("fee_type = ?", filter.FeeType)
	}
	if !filter.From.IsZero() {
		w.add("due_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("due_date <= ?", filter.To)
	}
	q := `SELECT ` + feeColumns + ` FROM fee WHERE ` + w.String() +
		` ORDER BY ` + core.OrderBy(ordering, feeOrderColumns, "due_date ASC, created_at ASC")

	var rows []feeRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying fees")
	})
	if err != nil {
		return nil, err
	}
	fees := make([]finance.Fee, 0, len(rows))
	for _, row := range rows {
		fees = append(fees, row.fee())
	}
	return fees, nil
}

func (repo *financeRepository) UpdateFee(ctx context.Context, tag access.Tag, f finance.Fee) (finance.Fee, error) {
	if !validID(f.ID) {
		return finance.Fee{}, finance.ErrFeeNotFound
	}
	f.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `UPDATE fee SET student_id = :student_id, fee_type = :fee_type, amount = :amount, amount_paid = :amount_paid,
			due_date = :due_date, status = :status, payment_mode = :payment_mode, payment_date = :payment_date,
			remarks = :remarks, updated_at = :updated_at
			WHERE id = :id AND owner_tag = :owner_tag`
		return execOne(ctx, tx, q, toFeeRow(f), finance.ErrFeeNotFound, "updating fee")
	})
	if err != nil {
		return finance.Fee{}, err
	}
	return f, nil
}

func (repo *financeRepository) DeleteFee(ctx context.Context, tag access.Tag, id string) error {
	if !validID(id) {
		return finance.ErrFeeNotFound
	}
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return deleteOne(ctx, tx, "fee", id, tag, finance.ErrFeeNotFound)
	})
}

// CreateSalaries inserts all salaries or none.
func (repo *financeRepository) CreateSalaries(ctx context.Context, tag access.Tag, salaries ...finance.Salary) ([]finance.Salary, error) {
	created := make([]finance.Salary, 0, len(salaries))
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO salary (`+salaryColumns+`) VALUES
			(:id, :owner_tag, :teacher_id, :amount, :period, :status, :payment_mode, :payment_date, :created_at, :updated_at)`)
		if err != nil {
			return errors.Wrap(err, "preparing salary insert")
		}
		defer func() { _ = stmt.Close() }()

		for _, s := range salaries {
			s.ID = uuid.NewString()
			s.OwnerTag = tag
			if _, err = stmt.ExecContext(ctx, toSalaryRow(s)); err != nil {
				if isUniqueViolation(err, salaryPeriodConstraint) {
					return finance.ErrSalaryExists
				}
				return errors.Wrap(err, "inserting salary")
			}
			created = append(created, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *financeRepository) GetSalary(ctx context.Context, tag access.Tag, id string) (finance.Salary, error) {
	if !validID(id) {
		return finance.Salary{}, finance.ErrSalaryNotFound
	}
	var row salaryRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `SELECT `+salaryColumns+` FROM salary WHERE id = $1 AND owner_tag = $2`, id, tag.String())
		if err != nil {
			return trapNoRowsErr(err, finance.ErrSalaryNotFound, "getting salary")
		}
		return nil
	})
	if err != nil {
		return finance.Salary{}, err
	}
	return row.salary(), nil
}

func (repo *financeRepository) QuerySalaries(ctx context.Context, tag access.Tag, filter finance.SalaryFilter, ordering []core.DBOrdering) ([]finance.Salary, error) {
	w := newWhere(tag)
	if filter.TeacherID != "" {
		if !validID(filter.TeacherID) {
			return []finance.Salary{}, nil
		}
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.Period != "" {
		w.add("period = ?", filter.Period)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	q := `SELECT ` + salaryColumns + ` FROM salary WHERE ` + w.String() +
		` ORDER BY ` + core.OrderBy(ordering, salaryOrderColumns, "period DESC, created_at ASC")

	var rows []salaryRow
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return errors.Wrap(tx.SelectContext(ctx, &rows, q, w.args...), "querying salaries")
	})
	if err != nil {
		return nil, err
	}
	salaries := make([]finance.Salary, 0, len(rows))
	for _, row := range rows {
		salaries = append(salaries, row.salary())
	}
	return salaries, nil
}

func (repo *financeRepository) UpdateSalary(ctx context.Context, tag access.Tag, s finance.Salary) (finance.Salary, error) {
	if !validID(s.ID) {
		return finance.Salary{}, finance.ErrSalaryNotFound
	}
	s.OwnerTag = tag
	err := repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		q := `UPDATE salary SET teacher_id = :teacher_id, amount = :amount, period = :period, status = :status,
			payment_mode = :payment_mode, payment_date = :payment_date, updated_at = :updated_at
			WHERE id = :id AND owner_tag = :owner_tag`
		err := execOne(ctx, tx, q, toSalaryRow(s), finance.ErrSalaryNotFound, "updating salary")
		if isUniqueViolation(err, salaryPeriodConstraint) {
			return finance.ErrSalaryExists
		}
		return err
	})
	if err != nil {
		return finance.Salary{}, err
	}
	return s, nil
}

func (repo *financeRepository) DeleteSalary(ctx context.Context, tag access.Tag, id string) error {
	if !validID(id) {
		return finance.ErrSalaryNotFound
	}
	return repo.st.scoped(ctx, tag, func(tx *sqlx.Tx) error {
		return deleteOne(ctx, tx, "salary", id, tag, finance.ErrSalaryNotFound)
	})
}

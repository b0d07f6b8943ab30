package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/finance"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db}
}

var (
	feeFields = map[string]comparator[finance.Fee]{
		"due_date":     byTime(func(f finance.Fee) time.Time { return f.DueDate.Time }),
		"amount":       byFloat(func(f finance.Fee) float64 { return f.Amount.InexactFloat64() }),
		"fee_type":     byString(func(f finance.Fee) string { return f.FeeType }),
		"status":       byString(func(f finance.Fee) string { return string(f.Status) }),
		"payment_date": byTime(func(f finance.Fee) time.Time { return f.PaymentDate.Time }),
		"created_at":   byTime(func(f finance.Fee) time.Time { return f.CreatedAt }),
	}
	salaryFields = map[string]comparator[finance.Salary]{
		"period":       byString(func(s finance.Salary) string { return s.Period }),
		"amount":       byFloat(func(s finance.Salary) float64 { return s.Amount.InexactFloat64() }),
		"status":       byString(func(s finance.Salary) string { return string(s.Status) }),
		"payment_date": byTime(func(s finance.Salary) time.Time { return s.PaymentDate.Time }),
		"created_at":   byTime(func(s finance.Salary) time.Time { return s.CreatedAt }),
	}
)

func (repo *financeRepository) CreateFee(_ context.Context, tag access.Tag, f finance.Fee) (finance.Fee, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	f.ID = uuid.NewString()
	f.OwnerTag = tag
	repo.db.fees[f.ID] = &f
	return f, nil
}

func (repo *financeRepository) GetFee(_ context.Context, tag access.Tag, id string) (finance.Fee, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.fees[id]; ok && f.OwnerTag == tag {
		return *f, nil
	}
	return finance.Fee{}, finance.ErrFeeNotFound
}

func (repo *financeRepository) QueryFees(_ context.Context, tag access.Tag, filter finance.FeeFilter, ordering []core.DBOrdering) ([]finance.Fee, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	fees := make([]finance.Fee, 0)
	for _, f := range repo.db.fees {
		if f.OwnerTag == tag && filter.Match(*f) {
			fees = append(fees, *f)
		}
	}
	sortRows(fees, ordering, feeFields, feeFields["due_date"])
	return fees, nil
}

func (repo *financeRepository) UpdateFee(_ context.Context, tag access.Tag, f finance.Fee) (finance.Fee, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.fees[f.ID]
	if !ok || orig.OwnerTag != tag {
		return finance.Fee{}, finance.ErrFeeNotFound
	}
	f.OwnerTag = tag
	f.CreatedAt = orig.CreatedAt
	repo.db.fees[f.ID] = &f
	return f, nil
}

func (repo *financeRepository) DeleteFee(_ context.Context, tag access.Tag, id string) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	f, ok := repo.db.fees[id]
	if !ok || f.OwnerTag != tag {
		return finance.ErrFeeNotFound
	}
	delete(repo.db.fees, id)
	return nil
}

func (repo *financeRepository) CreateSalaries(_ context.Context, tag access.Tag, salaries ...finance.Salary) ([]finance.Salary, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	taken := make(map[[2]string]bool)
	for _, s := range repo.db.salaries {
		if s.OwnerTag == tag {
			taken[[2]string{s.TeacherID, s.Period}] = true
		}
	}
	for _, s := range salaries {
		k := [2]string{s.TeacherID, s.Period}
		if taken[k] {
			return nil, finance.ErrSalaryExists
		}
		taken[k] = true
	}

	created := make([]finance.Salary, 0, len(salaries))
	for _, s := range salaries {
		s := s
		s.ID = uuid.NewString()
		s.OwnerTag = tag
		repo.db.salaries[s.ID] = &s
		created = append(created, s)
	}
	return created, nil
}

func (repo *financeRepository) GetSalary(_ context.Context, tag access.Tag, id string) (finance.Salary, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.salaries[id]; ok && s.OwnerTag == tag {
		return *s, nil
	}
	return finance.Salary{}, finance.ErrSalaryNotFound
}

func (repo *financeRepository) QuerySalaries(_ context.Context, tag access.Tag, filter finance.SalaryFilter, ordering []core.DBOrdering) ([]finance.Salary, error) {
	repo.db.hit()
	repo.db.RLock()
	defer repo.db.RUnlock()

	salaries := make([]finance.Salary, 0)
	for _, s := range repo.db.salaries {
		if s.OwnerTag == tag && filter.Match(*s) {
			salaries = append(salaries, *s)
		}
	}
	sortRows(salaries, ordering, salaryFields, func(a, b finance.Salary) int { return -salaryFields["period"](a, b) })
	return salaries, nil
}

func (repo *financeRepository) UpdateSalary(_ context.Context, tag access.Tag, s finance.Salary) (finance.Salary, error) {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.salaries[s.ID]
	if !ok || orig.OwnerTag != tag {
		return finance.Salary{}, finance.ErrSalaryNotFound
	}
	for _, other := range repo.db.salaries {
		if other.ID != s.ID && other.OwnerTag == tag && other.TeacherID == s.TeacherID && other.Period == s.Period {
			return finance.Salary{}, finance.ErrSalaryExists
		}
	}
	s.OwnerTag = tag
	s.CreatedAt = orig.CreatedAt
	repo.db.salaries[s.ID] = &s
	return s, nil
}

func (repo *financeRepository) DeleteSalary(_ context.Context, tag access.Tag, id string) error {
	repo.db.hit()
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.salaries[id]
	if !ok || s.OwnerTag != tag {
		return finance.ErrSalaryNotFound
	}
	delete(repo.db.salaries, id)
	return nil
}

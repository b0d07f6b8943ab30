package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/access"
)

const uniqueViolation = "23505"

// Store runs repository calls against PostgreSQL.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// scoped runs fn in a transaction whose app.owner_tag is tag, the setting every
// row-level security policy checks. A blank tag never reaches the database.
func (st *Store) scoped(ctx context.Context, tag access.Tag, fn func(tx *sqlx.Tx) error) (err error) {
	if strings.TrimSpace(tag.String()) == "" {
		return access.ErrNoOwner
	}
	tx, err := st.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT set_config('app.owner_tag', $1, true)", tag.String()); err != nil {
		return errors.Wrap(err, "setting owner tag")
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

// where accumulates AND-ed conditions; every "?" of a condition is bound to its single argument.
type where struct {
	conds []string
	args  []interface{}
}

func newWhere(tag access.Tag) *where {
	w := &where{}
	w.add("owner_tag = ?", tag.String())
	return w
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	return strings.Join(w.conds, " AND ")
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

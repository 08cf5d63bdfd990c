package option

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Operator enumerates the comparison operators supported by ApplyOperator.
type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// Condition expresses a single field comparison applied on top of the
// struct query.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// QuerySortBy describes an ORDER BY clause. Allow acts as a whitelist so
// user-supplied sort fields can't be injected into raw SQL.
type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// QueryOption mutates the gorm query before it is executed.
type QueryOption func(tx *gorm.DB) *gorm.DB

func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" {
			column = "created_at"
		}
		if sort.Allow != nil && !sort.Allow[column] {
			return tx
		}

		desc := false
		if sort.OrderBy == "desc" || sort.OrderBy == "DESC" {
			desc = true
		}

		return tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: column},
			Desc:   desc,
		})
	}
}

func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit)
	}
}

func WithOffset(offset int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return tx
		}
		return tx.Offset(offset)
	}
}

func ApplyOperator(cond Condition) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(cond.Field+" "+string(cond.Operator)+" ?", cond.Value)
	}
}

// WithLockingUpdate appends FOR UPDATE to the query so the selected rows
// stay locked for the duration of the surrounding transaction.
func WithLockingUpdate() QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
}

// LockingUpdate is the scope form of WithLockingUpdate, usable with
// tx.Scopes.
func LockingUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func Apply(tx *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		tx = opt(tx)
	}
	return tx
}

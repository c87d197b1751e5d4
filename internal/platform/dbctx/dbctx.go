// Package dbctx carries a request context together with the transaction, if any,
// that repository calls must join.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	// Tx is set only inside an aggregate write.
	Tx *gorm.DB
}

// Read returns a Context for queries outside any write transaction.
func Read(ctx context.Context) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return Context{Ctx: ctx}
}

// InTx reports whether a write transaction is open.
func (c Context) InTx() bool { return c.Tx != nil }

// Conn returns the open transaction, or fallback when there is none, bound to Ctx.
func (c Context) Conn(fallback *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = fallback
	}
	if db == nil {
		return nil
	}
	if c.Ctx == nil {
		return db
	}
	return db.WithContext(c.Ctx)
}

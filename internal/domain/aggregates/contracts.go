package aggregates

// WriteOp is one write operation an aggregate owns. Name doubles as the metric and
// span label of the operation.
type WriteOp struct {
	Name string
	// Codes are the rule-level failures the operation may report. Storage-level codes
	// (conflict, retryable, internal) are possible on every write and not listed.
	Codes []ErrorCode
}

// Contract names an aggregate and every write it owns. Each write runs in a
// transaction the aggregate opens itself; reads outside writes go to table repos.
type Contract struct {
	Name   string
	Writes []WriteOp
}

// Aggregate is implemented by every aggregate.
type Aggregate interface {
	Contract() Contract
}

var storageCodes = []ErrorCode{CodeConflict, CodeRetryable, CodeInternal}

// Op looks up a write operation by name.
func (c Contract) Op(name string) (WriteOp, bool) {
	for _, w := range c.Writes {
		if w.Name == name {
			return w, true
		}
	}
	return WriteOp{}, false
}

// Allows reports whether the named write may fail with code.
func (c Contract) Allows(op string, code ErrorCode) bool {
	w, ok := c.Op(op)
	if !ok {
		return false
	}
	for _, sc := range storageCodes {
		if sc == code {
			return true
		}
	}
	for _, wc := range w.Codes {
		if wc == code {
			return true
		}
	}
	return false
}

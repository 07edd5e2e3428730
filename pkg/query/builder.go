package query

// Builder accumulates filters and field selections into a Query.
// Not safe for concurrent use.
type Builder struct {
	q Query
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddLog appends a log filter. Multiple filters of one kind are ORed by
// the gateway.
func (b *Builder) AddLog(f LogFilter) *Builder {
	b.q.Logs = append(b.q.Logs, f)
	return b
}

// AddTransaction appends a transaction filter.
func (b *Builder) AddTransaction(f TxFilter) *Builder {
	b.q.Transactions = append(b.q.Transactions, f)
	return b
}

// AddTrace appends a trace filter.
func (b *Builder) AddTrace(f TraceFilter) *Builder {
	b.q.Traces = append(b.q.Traces, f)
	return b
}

// AddBlock pins a block number so it appears in responses even when no
// filter matches anything in it.
func (b *Builder) AddBlock(number uint64) *Builder {
	b.q.Blocks = append(b.q.Blocks, number)
	return b
}

// SelectLogFields sets the log field mask, replacing any previous one.
func (b *Builder) SelectLogFields(f LogFields) *Builder {
	b.q.LogFields = f
	return b
}

// SelectTxFields sets the transaction field mask, replacing any previous one.
func (b *Builder) SelectTxFields(f TxFields) *Builder {
	b.q.TxFields = f
	return b
}

// SelectTraceFields sets the trace field mask, replacing any previous one.
func (b *Builder) SelectTraceFields(f TraceFields) *Builder {
	b.q.TraceFields = f
	return b
}

// Build returns the accumulated query and resets the builder, so the
// returned Query is never aliased by later builder calls.
func (b *Builder) Build() *Query {
	q := b.q
	b.q = Query{}
	return &q
}

// Package query builds the declarative request specification the archive
// gateway understands: filter predicates and field-selection masks per
// dataset kind (logs, transactions, traces). The fetch engine treats a Query
// as an opaque, cloneable value and forwards its wire encoding unchanged
// with every page request.
package query

import (
	"encoding/json"

	"github.com/jinzhu/copier"
)

// Kind identifies a dataset kind within a query.
type Kind string

const (
	KindLogs         Kind = "logs"
	KindTransactions Kind = "transactions"
	KindTraces       Kind = "traces"
)

// Kinds returns the dataset kinds in their stable declared order. Table
// assembly unions selected columns in this order.
func Kinds() []Kind {
	return []Kind{KindLogs, KindTransactions, KindTraces}
}

// LogFilter matches event logs by emitting address and indexed topics.
// A nil slice leaves that predicate unconstrained; an all-nil filter
// matches every log.
type LogFilter struct {
	Address []string `json:"address,omitempty"`
	Topic0  []string `json:"topic0,omitempty"`
	Topic1  []string `json:"topic1,omitempty"`
	Topic2  []string `json:"topic2,omitempty"`
	Topic3  []string `json:"topic3,omitempty"`
}

// TxFilter matches transactions by sender, recipient, and function selector.
type TxFilter struct {
	From    []string `json:"from,omitempty"`
	To      []string `json:"to,omitempty"`
	Sighash []string `json:"sighash,omitempty"`
}

// TraceFilter matches execution traces by trace type and per-type addresses.
type TraceFilter struct {
	Type                 []string `json:"type,omitempty"`
	CreateFrom           []string `json:"create_from,omitempty"`
	CallTo               []string `json:"call_to,omitempty"`
	CallFrom             []string `json:"call_from,omitempty"`
	CallSighash          []string `json:"call_sighash,omitempty"`
	SuicideRefundAddress []string `json:"suicide_refund_address,omitempty"`
	RewardAuthor         []string `json:"author,omitempty"`
}

// Query is a complete request specification. Construct one through Builder;
// treat the result as read-only and Clone it before any mutation.
type Query struct {
	Logs         []LogFilter
	Transactions []TxFilter
	Traces       []TraceFilter
	Blocks       []uint64 // pinned block numbers included regardless of filters

	LogFields   LogFields
	TxFields    TxFields
	TraceFields TraceFields
}

// Clone returns a deep copy sharing no state with the receiver.
func (q *Query) Clone() (*Query, error) {
	clone := &Query{}
	if err := copier.CopyWithOption(clone, q, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	return clone, nil
}

// Encode serializes the query for the half-open block range [from, to).
// The gateway wire format uses inclusive bounds, so toBlock is to-1.
func (q *Query) Encode(from, to uint64) ([]byte, error) {
	body := map[string]any{
		"fromBlock": from,
		"toBlock":   to - 1,
	}

	fields := map[string]any{}
	if sel := selection(q.LogFields.names()); len(sel) > 0 {
		fields["log"] = sel
	}
	if sel := selection(q.TxFields.names()); len(sel) > 0 {
		fields["transaction"] = sel
	}
	if sel := selection(q.TraceFields.names()); len(sel) > 0 {
		fields["trace"] = sel
	}
	if len(fields) > 0 {
		body["fields"] = fields
	}

	if len(q.Logs) > 0 {
		body["logs"] = q.Logs
	}
	if len(q.Transactions) > 0 {
		body["transactions"] = q.Transactions
	}
	if len(q.Traces) > 0 {
		body["traces"] = q.Traces
	}
	if len(q.Blocks) > 0 {
		pins := make([]map[string]uint64, 0, len(q.Blocks))
		for _, n := range q.Blocks {
			pins = append(pins, map[string]uint64{"block_number": n})
		}
		body["blocks"] = pins
	}

	return json.Marshal(body)
}

func selection(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	sel := make(map[string]bool, len(names))
	for _, n := range names {
		sel[n] = true
	}
	return sel
}

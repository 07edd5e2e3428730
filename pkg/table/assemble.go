package table

import (
	"fmt"

	"github.com/dariaag/dive-go/pkg/archive"
	"github.com/dariaag/dive-go/pkg/query"
)

// BlockNumberColumn is always the leading column, populated from each
// record's enclosing block header.
const BlockNumberColumn = "block_number"

// Assemble converts an ordered block sequence into a Table. The schema is
// the union, in declared order, of the selected field names of every dataset
// kind the query engages (kinds with at least one filter or a non-empty
// mask), deduplicated on name so kinds sharing a field share a column.
// Records whose kind selects no fields, and columns mixing incompatible
// value types, yield a conversion FetchError.
func Assemble(blocks []archive.Block, q *query.Query) (*Table, error) {
	masks := map[query.Kind][]string{
		query.KindLogs:         q.LogFields.Names(),
		query.KindTransactions: q.TxFields.Names(),
		query.KindTraces:       q.TraceFields.Names(),
	}
	engaged := map[query.Kind]bool{
		query.KindLogs:         len(q.Logs) > 0 || len(masks[query.KindLogs]) > 0,
		query.KindTransactions: len(q.Transactions) > 0 || len(masks[query.KindTransactions]) > 0,
		query.KindTraces:       len(q.Traces) > 0 || len(masks[query.KindTraces]) > 0,
	}

	t := &Table{index: make(map[string]int)}
	addColumn := func(name string) {
		if _, exists := t.index[name]; exists {
			return
		}
		t.index[name] = len(t.columns)
		t.columns = append(t.columns, Column{Name: name})
	}
	addColumn(BlockNumberColumn)
	for _, kind := range query.Kinds() {
		if !engaged[kind] {
			continue
		}
		for _, name := range masks[kind] {
			addColumn(name)
		}
	}

	types := make([]valueType, len(t.columns))
	appendRow := func(number uint64, kind query.Kind, rec archive.Record) error {
		mask := masks[kind]
		if len(mask) == 0 {
			return &archive.FetchError{
				Kind:    archive.KindConversion,
				Block:   number,
				Message: fmt.Sprintf("no fields selected for %s but block %d carries %s records", kind, number, kind),
			}
		}

		for i := range t.columns {
			t.columns[i].Values = append(t.columns[i].Values, nil)
		}
		row := t.NumRows() - 1
		t.columns[t.index[BlockNumberColumn]].Values[row] = number

		for _, name := range mask {
			v, ok := rec[name]
			if !ok || v == nil {
				continue
			}
			col := t.index[name]
			vt := typeOf(v)
			if types[col] == typeUnset {
				types[col] = vt
			} else if types[col] != vt {
				return &archive.FetchError{
					Kind:    archive.KindConversion,
					Block:   number,
					Message: fmt.Sprintf("column %q mixes %s and %s values", name, types[col], vt),
				}
			}
			t.columns[col].Values[row] = v
		}
		return nil
	}

	for i := range blocks {
		b := &blocks[i]
		n := b.Header.Number
		for _, rec := range b.Logs {
			if err := appendRow(n, query.KindLogs, rec); err != nil {
				return nil, err
			}
		}
		for _, rec := range b.Transactions {
			if err := appendRow(n, query.KindTransactions, rec); err != nil {
				return nil, err
			}
		}
		for _, rec := range b.Traces {
			if err := appendRow(n, query.KindTraces, rec); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

type valueType int

const (
	typeUnset valueType = iota
	typeString
	typeNumber
	typeBool
	typeList
	typeObject
)

func (v valueType) String() string {
	switch v {
	case typeString:
		return "string"
	case typeNumber:
		return "number"
	case typeBool:
		return "bool"
	case typeList:
		return "list"
	case typeObject:
		return "object"
	default:
		return "unset"
	}
}

func typeOf(v any) valueType {
	switch v.(type) {
	case string:
		return typeString
	case float64, uint64, int64, int:
		return typeNumber
	case bool:
		return typeBool
	case []any:
		return typeList
	default:
		return typeObject
	}
}

// Package archive defines the data model shared by the range-fetch engine:
// decoded block records as the gateway returns them, the page unit the
// scheduler advances over, and the error taxonomy every layer reports with.
package archive

import "fmt"

// Record is one decoded log, transaction, or trace object. Field names and
// value types are owned by the remote service; the engine never interprets
// them beyond JSON decoding.
type Record map[string]any

// BlockHeader carries the per-block metadata the gateway always includes.
// Only Number is guaranteed; the remaining fields are populated when the
// query selects them.
type BlockHeader struct {
	Number     uint64 `json:"number"`
	Hash       string `json:"hash,omitempty"`
	ParentHash string `json:"parentHash,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// Block is one block's worth of records, grouped by dataset kind.
type Block struct {
	Header       BlockHeader `json:"header"`
	Logs         []Record    `json:"logs,omitempty"`
	Transactions []Record    `json:"transactions,omitempty"`
	Traces       []Record    `json:"traces,omitempty"`
}

// RecordCount returns the number of records of all kinds in the block.
func (b *Block) RecordCount() int {
	return len(b.Logs) + len(b.Transactions) + len(b.Traces)
}

// Page is one gateway response: blocks covering a contiguous sub-range in
// ascending order, plus the first block the server has not yet covered.
// NextBlock equals the range end on the final page of a fetch.
type Page struct {
	Blocks    []Block
	NextBlock uint64
}

// NewPage validates decoded blocks against the coverage contract for the
// half-open request range [from, to) and derives the continuation position.
// An empty body, out-of-range block numbers, or non-ascending order all
// violate the contract and return a protocol_violation FetchError.
func NewPage(blocks []Block, from, to uint64) (*Page, error) {
	if len(blocks) == 0 {
		return nil, &FetchError{
			Kind:    KindProtocolViolation,
			Block:   from,
			Message: fmt.Sprintf("empty page for range [%d, %d)", from, to),
		}
	}

	prev := uint64(0)
	for i, b := range blocks {
		n := b.Header.Number
		if n < from || n >= to {
			return nil, &FetchError{
				Kind:    KindProtocolViolation,
				Block:   from,
				Message: fmt.Sprintf("block %d outside requested range [%d, %d)", n, from, to),
			}
		}
		if i > 0 && n <= prev {
			return nil, &FetchError{
				Kind:    KindProtocolViolation,
				Block:   from,
				Message: fmt.Sprintf("block numbers not ascending (%d after %d)", n, prev),
			}
		}
		prev = n
	}

	return &Page{
		Blocks:    blocks,
		NextBlock: blocks[len(blocks)-1].Header.Number + 1,
	}, nil
}

// BlockCount returns the number of blocks covered by the page.
func (p *Page) BlockCount() int {
	return len(p.Blocks)
}

// RecordCount returns the number of records of all kinds in the page.
func (p *Page) RecordCount() int {
	total := 0
	for i := range p.Blocks {
		total += p.Blocks[i].RecordCount()
	}
	return total
}

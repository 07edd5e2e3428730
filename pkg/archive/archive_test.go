package archive

import (
	"errors"
	"testing"
)

func block(number uint64, logs, txs int) Block {
	b := Block{Header: BlockHeader{Number: number}}
	for i := 0; i < logs; i++ {
		b.Logs = append(b.Logs, Record{"logIndex": float64(i)})
	}
	for i := 0; i < txs; i++ {
		b.Transactions = append(b.Transactions, Record{"transaction_index": float64(i)})
	}
	return b
}

func TestNewPage_DerivesNextBlock(t *testing.T) {
	tests := []struct {
		name         string
		blocks       []Block
		from         uint64
		to           uint64
		expectedNext uint64
	}{
		{
			name:         "full coverage",
			blocks:       []Block{block(100, 1, 0), block(101, 0, 2), block(102, 1, 1)},
			from:         100,
			to:           103,
			expectedNext: 103,
		},
		{
			name:         "partial coverage continues mid-range",
			blocks:       []Block{block(100, 1, 0), block(101, 1, 0)},
			from:         100,
			to:           200,
			expectedNext: 102,
		},
		{
			name:         "sparse blocks",
			blocks:       []Block{block(100, 1, 0), block(150, 1, 0)},
			from:         100,
			to:           200,
			expectedNext: 151,
		},
		{
			name:         "single block range",
			blocks:       []Block{block(14000005, 3, 0)},
			from:         14000005,
			to:           14000006,
			expectedNext: 14000006,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := NewPage(tt.blocks, tt.from, tt.to)
			if err != nil {
				t.Fatalf("NewPage() error = %v", err)
			}
			if page.NextBlock != tt.expectedNext {
				t.Errorf("NextBlock = %d, want %d", page.NextBlock, tt.expectedNext)
			}
			if page.BlockCount() != len(tt.blocks) {
				t.Errorf("BlockCount() = %d, want %d", page.BlockCount(), len(tt.blocks))
			}
		})
	}
}

func TestNewPage_ContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		blocks []Block
		from   uint64
		to     uint64
	}{
		{
			name:   "empty page denies progress",
			blocks: nil,
			from:   100,
			to:     200,
		},
		{
			name:   "block below range",
			blocks: []Block{block(99, 1, 0)},
			from:   100,
			to:     200,
		},
		{
			name:   "block at exclusive end",
			blocks: []Block{block(200, 1, 0)},
			from:   100,
			to:     200,
		},
		{
			name:   "descending block numbers",
			blocks: []Block{block(105, 1, 0), block(104, 1, 0)},
			from:   100,
			to:     200,
		},
		{
			name:   "duplicate block numbers",
			blocks: []Block{block(105, 1, 0), block(105, 1, 0)},
			from:   100,
			to:     200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPage(tt.blocks, tt.from, tt.to)
			if err == nil {
				t.Fatal("NewPage() expected error, got nil")
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("error is %T, want *FetchError", err)
			}
			if fe.Kind != KindProtocolViolation {
				t.Errorf("Kind = %q, want %q", fe.Kind, KindProtocolViolation)
			}
		})
	}
}

func TestPage_RecordCount(t *testing.T) {
	page, err := NewPage([]Block{block(10, 2, 1), block(11, 0, 0), block(12, 1, 3)}, 10, 13)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}

	if got := page.RecordCount(); got != 7 {
		t.Errorf("RecordCount() = %d, want 7", got)
	}
}

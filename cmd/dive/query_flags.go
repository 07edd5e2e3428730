package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dariaag/dive-go/pkg/query"
)

// Field selectors use the gateway's wire names, the same names that appear
// as output columns.

func parseLogFields(list string) (query.LogFields, error) {
	var f query.LogFields
	known := map[string]*bool{
		"logIndex":          &f.LogIndex,
		"transaction_index": &f.TransactionIndex,
		"block":             &f.Block,
		"address":           &f.Address,
		"data":              &f.Data,
		"topics":            &f.Topics,
		"transactionHash":   &f.TransactionHash,
	}
	for _, name := range splitList(list) {
		p, ok := known[name]
		if !ok {
			return query.LogFields{}, fmt.Errorf("unknown log field %q", name)
		}
		*p = true
	}
	return f, nil
}

func parseTxFields(list string) (query.TxFields, error) {
	var f query.TxFields
	known := map[string]*bool{
		"id":                       &f.ID,
		"transaction_index":        &f.TransactionIndex,
		"from":                     &f.From,
		"to":                       &f.To,
		"hash":                     &f.Hash,
		"gas":                      &f.Gas,
		"gas_price":                &f.GasPrice,
		"max_fee_per_gas":          &f.MaxFeePerGas,
		"max_priority_fee_per_gas": &f.MaxPriorityFeePerGas,
		"input":                    &f.Input,
		"nonce":                    &f.Nonce,
		"value":                    &f.Value,
		"v":                        &f.V,
		"r":                        &f.R,
		"s":                        &f.S,
		"y_parity":                 &f.YParity,
		"chain_id":                 &f.ChainID,
		"gas_used":                 &f.GasUsed,
		"cumulative_gas_used":      &f.CumulativeGasUsed,
		"effective_gas_price":      &f.EffectiveGasPrice,
		"contract_address":         &f.ContractAddress,
		"type":                     &f.Type,
		"status":                   &f.Status,
		"sighash":                  &f.Sighash,
	}
	for _, name := range splitList(list) {
		p, ok := known[name]
		if !ok {
			return query.TxFields{}, fmt.Errorf("unknown transaction field %q", name)
		}
		*p = true
	}
	return f, nil
}

func parseTraceFields(list string) (query.TraceFields, error) {
	var f query.TraceFields
	known := map[string]*bool{
		"transactionIndex": &f.TransactionIndex,
		"traceAddress":     &f.TraceAddress,
		"subtraces":        &f.Subtraces,
		"error":            &f.Error,
		"revertReason":     &f.RevertReason,
		"type":             &f.Type,
		"from":             &f.From,
		"value":            &f.Value,
		"gas":              &f.Gas,
		"init":             &f.Init,
		"gasUsed":          &f.GasUsed,
		"resultCode":       &f.ResultCode,
		"resultAddress":    &f.ResultAddress,
		"callType":         &f.CallType,
		"input":            &f.Input,
		"sighash":          &f.Sighash,
		"output":           &f.Output,
		"address":          &f.Address,
		"refundAddress":    &f.RefundAddress,
		"rewardAuthor":     &f.RewardAuthor,
		"balance":          &f.Balance,
	}
	for _, name := range splitList(list) {
		p, ok := known[name]
		if !ok {
			return query.TraceFields{}, fmt.Errorf("unknown trace field %q", name)
		}
		*p = true
	}
	return f, nil
}

func parseBlockList(list string) ([]uint64, error) {
	var blocks []uint64
	for _, s := range splitList(list) {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad block number %q", s)
		}
		blocks = append(blocks, n)
	}
	return blocks, nil
}

// splitList splits a comma-separated flag value, trimming whitespace and
// dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

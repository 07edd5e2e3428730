package query

// Field masks mirror the gateway's selection schema. Each mask is a plain
// bool struct; the wire names below are fixed by the gateway and mix casing
// conventions, so they are spelled out per field instead of derived.

// LogFields selects which log columns the gateway materializes.
type LogFields struct {
	LogIndex         bool
	TransactionIndex bool
	Block            bool
	Address          bool
	Data             bool
	Topics           bool
	TransactionHash  bool
}

// Names returns the wire names of the selected fields in declared order.
// These are also the column names table assembly produces.
func (f LogFields) Names() []string {
	return f.names()
}

func (f LogFields) names() []string {
	var names []string
	if f.LogIndex {
		names = append(names, "logIndex")
	}
	if f.TransactionIndex {
		names = append(names, "transaction_index")
	}
	if f.Block {
		names = append(names, "block")
	}
	if f.Address {
		names = append(names, "address")
	}
	if f.Data {
		names = append(names, "data")
	}
	if f.Topics {
		names = append(names, "topics")
	}
	if f.TransactionHash {
		names = append(names, "transactionHash")
	}
	return names
}

// TxFields selects which transaction columns the gateway materializes.
type TxFields struct {
	ID                   bool
	TransactionIndex     bool
	From                 bool
	To                   bool
	Hash                 bool
	Gas                  bool
	GasPrice             bool
	MaxFeePerGas         bool
	MaxPriorityFeePerGas bool
	Input                bool
	Nonce                bool
	Value                bool
	V                    bool
	R                    bool
	S                    bool
	YParity              bool
	ChainID              bool
	GasUsed              bool
	CumulativeGasUsed    bool
	EffectiveGasPrice    bool
	ContractAddress      bool
	Type                 bool
	Status               bool
	Sighash              bool
}

// Names returns the wire names of the selected fields in declared order.
func (f TxFields) Names() []string {
	return f.names()
}

func (f TxFields) names() []string {
	var names []string
	if f.ID {
		names = append(names, "id")
	}
	if f.TransactionIndex {
		names = append(names, "transaction_index")
	}
	if f.From {
		names = append(names, "from")
	}
	if f.To {
		names = append(names, "to")
	}
	if f.Hash {
		names = append(names, "hash")
	}
	if f.Gas {
		names = append(names, "gas")
	}
	if f.GasPrice {
		names = append(names, "gas_price")
	}
	if f.MaxFeePerGas {
		names = append(names, "max_fee_per_gas")
	}
	if f.MaxPriorityFeePerGas {
		names = append(names, "max_priority_fee_per_gas")
	}
	if f.Input {
		names = append(names, "input")
	}
	if f.Nonce {
		names = append(names, "nonce")
	}
	if f.Value {
		names = append(names, "value")
	}
	if f.V {
		names = append(names, "v")
	}
	if f.R {
		names = append(names, "r")
	}
	if f.S {
		names = append(names, "s")
	}
	if f.YParity {
		names = append(names, "y_parity")
	}
	if f.ChainID {
		names = append(names, "chain_id")
	}
	if f.GasUsed {
		names = append(names, "gas_used")
	}
	if f.CumulativeGasUsed {
		names = append(names, "cumulative_gas_used")
	}
	if f.EffectiveGasPrice {
		names = append(names, "effective_gas_price")
	}
	if f.ContractAddress {
		names = append(names, "contract_address")
	}
	if f.Type {
		names = append(names, "type")
	}
	if f.Status {
		names = append(names, "status")
	}
	if f.Sighash {
		names = append(names, "sighash")
	}
	return names
}

// TraceFields selects which trace columns the gateway materializes.
// GasUsed expands to the create and call result variants the gateway
// stores separately.
type TraceFields struct {
	TransactionIndex bool
	TraceAddress     bool
	Subtraces        bool
	Error            bool
	RevertReason     bool
	Type             bool
	From             bool
	Value            bool
	Gas              bool
	Init             bool
	GasUsed          bool
	ResultCode       bool
	ResultAddress    bool
	CallType         bool
	Input            bool
	Sighash          bool
	Output           bool
	Address          bool
	RefundAddress    bool
	RewardAuthor     bool
	Balance          bool
}

// Names returns the wire names of the selected fields in declared order.
func (f TraceFields) Names() []string {
	return f.names()
}

func (f TraceFields) names() []string {
	var names []string
	if f.TransactionIndex {
		names = append(names, "transactionIndex")
	}
	if f.TraceAddress {
		names = append(names, "traceAddress")
	}
	if f.Subtraces {
		names = append(names, "subtraces")
	}
	if f.Error {
		names = append(names, "error")
	}
	if f.RevertReason {
		names = append(names, "revertReason")
	}
	if f.Type {
		names = append(names, "type")
	}
	if f.From {
		names = append(names, "from")
	}
	if f.Value {
		names = append(names, "value")
	}
	if f.Gas {
		names = append(names, "gas")
	}
	if f.Init {
		names = append(names, "init")
	}
	if f.GasUsed {
		names = append(names, "createResultGasUsed", "callResultGasUsed")
	}
	if f.ResultCode {
		names = append(names, "resultCode")
	}
	if f.ResultAddress {
		names = append(names, "resultAddress")
	}
	if f.CallType {
		names = append(names, "callType")
	}
	if f.Input {
		names = append(names, "input")
	}
	if f.Sighash {
		names = append(names, "sighash")
	}
	if f.Output {
		names = append(names, "output")
	}
	if f.Address {
		names = append(names, "address")
	}
	if f.RefundAddress {
		names = append(names, "refundAddress")
	}
	if f.RewardAuthor {
		names = append(names, "rewardAuthor")
	}
	if f.Balance {
		names = append(names, "balance")
	}
	return names
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dariaag/dive-go/pkg/query"
)

type fetchOptions struct {
	From   uint64
	To     uint64
	Format string
	Output string

	LogAddress string
	LogTopic0  string
	LogFields  string

	TxFrom    string
	TxTo      string
	TxSighash string
	TxFields  string

	TraceType   string
	TraceCallTo string
	TraceFields string

	Blocks string
}

func fetchCommand(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	urlFlag := fs.String("url", "", "archive gateway URL")

	var opts fetchOptions
	fs.Uint64Var(&opts.From, "from", 0, "first block of the range (inclusive)")
	fs.Uint64Var(&opts.To, "to", 0, "end of the range (exclusive)")
	fs.StringVar(&opts.Format, "format", "jsonl", "output format: jsonl or csv")
	fs.StringVar(&opts.Output, "o", "", "output file (default stdout)")
	fs.StringVar(&opts.LogAddress, "log-address", "", "comma-separated contract addresses for the log filter")
	fs.StringVar(&opts.LogTopic0, "log-topic0", "", "comma-separated topic0 values for the log filter")
	fs.StringVar(&opts.LogFields, "log-fields", "", "comma-separated log fields to materialize, e.g. logIndex,address,topics")
	fs.StringVar(&opts.TxFrom, "tx-from", "", "comma-separated sender addresses for the transaction filter")
	fs.StringVar(&opts.TxTo, "tx-to", "", "comma-separated recipient addresses for the transaction filter")
	fs.StringVar(&opts.TxSighash, "tx-sighash", "", "comma-separated 4-byte selectors for the transaction filter")
	fs.StringVar(&opts.TxFields, "tx-fields", "", "comma-separated transaction fields to materialize, e.g. hash,from,to,value")
	fs.StringVar(&opts.TraceType, "trace-type", "", "comma-separated trace types for the trace filter")
	fs.StringVar(&opts.TraceCallTo, "trace-call-to", "", "comma-separated call targets for the trace filter")
	fs.StringVar(&opts.TraceFields, "trace-fields", "", "comma-separated trace fields to materialize, e.g. type,from,gasUsed")
	fs.StringVar(&opts.Blocks, "blocks", "", "comma-separated block numbers to pin regardless of filters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.To == 0 {
		return fmt.Errorf("flags -from and -to are required")
	}
	if opts.Format != "jsonl" && opts.Format != "csv" {
		return fmt.Errorf("unknown format %q (want jsonl or csv)", opts.Format)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *urlFlag != "" {
		cfg.Archive.URL = *urlFlag
	}

	q, err := buildQuery(opts)
	if err != nil {
		return err
	}

	logger := setupLogging(cfg.Log)
	d, err := newDatasource(cfg, logger)
	if err != nil {
		return err
	}

	tbl, err := d.GetAsTable(ctx, q, opts.From, opts.To)
	if err != nil {
		return err
	}

	out := stdout
	if opts.Output != "" && opts.Output != "-" {
		file, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	if opts.Format == "csv" {
		return tbl.WriteCSV(out)
	}
	return tbl.WriteJSONL(out)
}

// buildQuery turns the flag values into a gateway query. A filter is only
// added when at least one of its flags is set, so a bare range fetch stays
// a header-only request.
func buildQuery(opts fetchOptions) (*query.Query, error) {
	b := query.NewBuilder()

	if opts.LogAddress != "" || opts.LogTopic0 != "" {
		b.AddLog(query.LogFilter{
			Address: splitList(opts.LogAddress),
			Topic0:  splitList(opts.LogTopic0),
		})
	}
	if opts.TxFrom != "" || opts.TxTo != "" || opts.TxSighash != "" {
		b.AddTransaction(query.TxFilter{
			From:    splitList(opts.TxFrom),
			To:      splitList(opts.TxTo),
			Sighash: splitList(opts.TxSighash),
		})
	}
	if opts.TraceType != "" || opts.TraceCallTo != "" {
		b.AddTrace(query.TraceFilter{
			Type:   splitList(opts.TraceType),
			CallTo: splitList(opts.TraceCallTo),
		})
	}

	if opts.LogFields != "" {
		f, err := parseLogFields(opts.LogFields)
		if err != nil {
			return nil, err
		}
		b.SelectLogFields(f)
	}
	if opts.TxFields != "" {
		f, err := parseTxFields(opts.TxFields)
		if err != nil {
			return nil, err
		}
		b.SelectTxFields(f)
	}
	if opts.TraceFields != "" {
		f, err := parseTraceFields(opts.TraceFields)
		if err != nil {
			return nil, err
		}
		b.SelectTraceFields(f)
	}

	blocks, err := parseBlockList(opts.Blocks)
	if err != nil {
		return nil, err
	}
	for _, n := range blocks {
		b.AddBlock(n)
	}

	return b.Build(), nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
)

func heightCommand(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("height", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	urlFlag := fs.String("url", "", "archive gateway URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *urlFlag != "" {
		cfg.Archive.URL = *urlFlag
	}

	logger := setupLogging(cfg.Log)
	d, err := newDatasource(cfg, logger)
	if err != nil {
		return err
	}

	height, err := d.Height(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, height)
	return nil
}

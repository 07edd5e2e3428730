package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `dive fetches block data from a Subsquid archive gateway.

Usage:
  dive height -url URL [flags]
  dive fetch  -url URL -from N -to N [flags]

Run "dive <command> -h" for command flags. Settings may also come from a
YAML config file (-config) or DIVE_* environment variables, e.g.
DIVE_ARCHIVE_URL.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "height":
		err = heightCommand(ctx, os.Args[2:], os.Stdout)
	case "fetch":
		err = fetchCommand(ctx, os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Command racetier audits, classifies and normalizes race-profile corpora,
// locally or against a running raterd.
//
// Exit codes: 0 when the audit has no severe violation, 1 when it does, 2 on
// any other failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errSevere) {
			return 1
		}
		fmt.Fprintln(stderr, "racetier:", err)
		return 2
	}
	return 0
}

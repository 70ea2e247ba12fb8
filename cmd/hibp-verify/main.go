// Command hibp-verify answers a single is-this-password-breached query
// against an on-disk sha1t48 index, as a thin CLI wrapper around
// internal/verify for manual inspection and scripting (spec §6).
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/hibpindex/sha1t48/internal/hibperrors"
	"github.com/hibpindex/sha1t48/internal/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin))
}

func run(args []string, stdin *os.File) int {
	flags := pflag.NewFlagSet("hibp-verify", pflag.ContinueOnError)
	dataDir := flags.String("data-dir", "", "path to the sha1t48 index (default: $HIBP_DATA_DIR)")
	password := flags.String("password", "", "password to check (default: read one line from stdin)")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	dir := *dataDir
	if dir == "" {
		dir = verify.DataDirFromEnv()
	}
	if dir == "" {
		fmt.Fprintln(os.Stderr, "hibp-verify: --data-dir or $HIBP_DATA_DIR is required")
		return 2
	}

	pw := *password
	if pw == "" {
		scanner := bufio.NewScanner(stdin)
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr, "hibp-verify: no password given on --password or stdin")
			return 2
		}
		pw = scanner.Text()
	}

	checker := verify.New(dir)
	breached, err := checker.IsBreached(pw)
	if err != nil {
		var missing *hibperrors.MissingShardError
		var corrupt *hibperrors.CorruptShardError
		switch {
		case errors.As(err, &missing):
			fmt.Fprintln(os.Stderr, "hibp-verify: index incomplete:", err)
		case errors.As(err, &corrupt):
			fmt.Fprintln(os.Stderr, "hibp-verify: index corrupt:", err)
		default:
			fmt.Fprintln(os.Stderr, "hibp-verify:", err)
		}
		return 1
	}

	if breached {
		fmt.Println("breached")
	} else {
		fmt.Println("not breached")
	}
	return 0
}

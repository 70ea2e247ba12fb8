// Command hibp-build downloads the Have I Been Pwned range dataset and
// materializes it as a sha1t48 on-disk index for use with the verifier.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/hibpindex/sha1t48/internal/build"
	"github.com/hibpindex/sha1t48/internal/fetch"
	"github.com/hibpindex/sha1t48/internal/progress"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("hibp-build", pflag.ContinueOnError)
	output := flags.StringP("output", "o", "", "output directory for the sha1t48 index (required)")
	workers := flags.IntP("concurrent-workers", "j", 64, "number of concurrent download workers")
	resume := flags.Bool("resume", false, "resume a previous build, skipping existing shards")
	force := flags.Bool("force", false, "delete and recreate the output directory before building")
	limit := flags.Uint32("limit", build.TotalPrefixes, "number of prefixes to build, starting at 0 (exclusive upper bound), for testing")
	noProgress := flags.Bool("no-progress", false, "disable the progress bar")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "hibp-build: --output is required")
		return 2
	}
	if *resume && *force {
		fmt.Fprintln(os.Stderr, "hibp-build: --resume and --force are mutually exclusive")
		return 2
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	policy := build.PolicyFailIfExists
	switch {
	case *force:
		policy = build.PolicyForce
	case *resume:
		policy = build.PolicyResume
	}

	var reporter progress.Reporter = progress.NoopReporter{}
	if !*noProgress {
		reporter = progress.NewBarReporter(os.Stderr)
	}

	fetcher := fetch.New(fetch.Config{Workers: *workers})

	b := build.New(fetcher, build.Config{
		OutputDir: *output,
		Workers:   *workers,
		Limit:     *limit,
		Policy:    policy,
		Reporter:  reporter,
		Logger:    log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "hibp-build:", err)
		return 1
	}

	log.Info("build complete")
	return 0
}

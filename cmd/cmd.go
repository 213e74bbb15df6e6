package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	cfgPkg "github.com/xhad/edms-dedupe/pkg/config"
	"github.com/xhad/edms-dedupe/pkg/dedupe"
	"github.com/xhad/edms-dedupe/pkg/edms"
	"github.com/xhad/edms-dedupe/pkg/logging"
	"github.com/xhad/edms-dedupe/pkg/selector"
	"golang.org/x/term"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// stageReporter narrates the detection pipeline: one spinner while the
// catalog is listed, one bar per file stage.
type stageReporter struct {
	algorithm string
	progress  bool
	bar       *progressbar.ProgressBar
}

func (r *stageReporter) start(stage dedupe.Stage, total int) {
	r.finish()

	switch stage {
	case dedupe.StageFetch:
		fmt.Println("getting documents...")
		if r.progress {
			r.bar = getSpinner("fetching catalog")
		}
	case dedupe.StageSize:
		fmt.Println("getting filesize duplicates...")
		if r.progress && total > 0 {
			r.bar = getProgressBar(total, "sizing documents")
		}
	case dedupe.StageHash:
		fmt.Printf("getting %s duplicates...\n", strings.ToUpper(r.algorithm))
		if r.progress && total > 0 {
			r.bar = getProgressBar(total, "hashing documents")
		}
	}
}

func (r *stageReporter) step(stage dedupe.Stage) {
	if r.bar != nil {
		r.bar.Add(1)
	}
}

func (r *stageReporter) fetched(count int) {
	if r.bar != nil {
		r.bar.Describe(color.CyanString("fetching catalog (%d documents)", count))
		r.bar.Add(1)
	}
}

func (r *stageReporter) finish() {
	if r.bar != nil {
		r.bar.Finish()
		fmt.Println()
		r.bar = nil
	}
}

func run(ctx context.Context, config *cfgPkg.Config, dryRun bool) error {
	if !config.ColorEnabled() {
		color.NoColor = true
	}

	stdin := bufio.NewReader(os.Stdin)
	if missingSettings(config) {
		// Blocking reads ignore ctx; let Ctrl-C end the process while the
		// operator is typing, then hand interrupts back to ctx.
		signal.Reset(os.Interrupt)
		if err := promptMissing(config, stdin, os.Stdout); err != nil {
			return err
		}

		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration (%d problems)", len(errs))
	}

	logger := logging.New(config.Log.Level, os.Stderr, config.ColorEnabled())

	reporter := &stageReporter{
		algorithm: config.Hashing.Algorithm,
		progress:  config.ProgressEnabled(),
	}

	client, err := edms.NewWithConfig(edms.ClientConfig{
		BaseURL:   config.Server.URL,
		Username:  config.Server.Username,
		Password:  config.Server.Password,
		MediaRoot: config.Storage.MediaRoot,
		Timeout:   config.Server.Timeout,
		RateLimit: config.Server.RateLimit,
		OnPage:    reporter.fetched,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize API client: %w", err)
	}

	resolver, err := dedupe.NewResolver(dedupe.ResolverConfig{
		Algorithm:       config.Hashing.Algorithm,
		IsolateFailures: config.Hashing.IsolateFailures,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize hasher: %w", err)
	}
	reporter.algorithm = resolver.Algorithm()

	finder, err := dedupe.NewWithConfig(dedupe.FinderConfig{
		Lister:     client,
		Resolver:   resolver,
		OnStage:    reporter.start,
		OnProgress: reporter.step,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize finder: %w", err)
	}

	report, err := finder.Run(ctx)
	reporter.finish()
	if err != nil {
		return describe(err)
	}

	for _, skipped := range report.Skipped {
		color.Yellow("skipped %s size group: %v", selector.FormatSize(skipped.Size), skipped.Err)
	}
	color.Green("found %d duplicates!", len(report.Groups))
	logger.Info().Int("documents", report.Documents).Int("size_groups", report.SizeGroups).Msg("scan complete")

	if len(report.Groups) == 0 {
		return nil
	}

	if dryRun {
		color.Yellow("dry run: nothing will be deleted")
	}
	fmt.Println("\nCHOOSE DOCUMENT TO KEEP")

	// From here on the operator is typing; let Ctrl-C end the process
	// right away instead of waiting for the next line of input.
	signal.Reset(os.Interrupt)

	sel, err := selector.NewWithConfig(selector.SelectorConfig{
		Deleter: client,
		In:      stdin,
		Out:     os.Stdout,
		DryRun:  dryRun,
		Color:   config.ColorEnabled() && !color.NoColor,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	summary, err := sel.Run(ctx, report.Groups)
	printSummary(summary, dryRun)
	logger.Info().Str("summary", summary.String()).Msg("run finished")
	if err != nil {
		return describe(err)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d deletions failed", summary.Failed)
	}
	return nil
}

// describe adds a hint for the fatal pipeline errors an operator can act on.
func describe(err error) error {
	var fetchErr *edms.FetchError
	var transportErr *edms.TransportError
	var accessErr *dedupe.FileAccessError

	switch {
	case errors.As(err, &fetchErr):
		return fmt.Errorf("%w (check URL and credentials)", err)
	case errors.As(err, &transportErr):
		return fmt.Errorf("%w (is the server reachable?)", err)
	case errors.As(err, &accessErr):
		return fmt.Errorf("%w (is the media directory correct and readable?)", err)
	default:
		return err
	}
}

func printSummary(summary selector.Summary, dryRun bool) {
	fmt.Println("\n===== Summary =====")
	fmt.Printf("Duplicate groups: %d\n", summary.Groups)
	fmt.Printf("Documents kept: %d\n", summary.Kept)
	if dryRun {
		fmt.Printf("Would delete: %d\n", summary.WouldDelete)
	} else {
		color.Green("Deleted: %d", summary.Deleted)
		if summary.Failed > 0 {
			color.Red("Failed: %d", summary.Failed)
		}
		fmt.Printf("Reclaimed space: %s\n", selector.FormatSize(summary.ReclaimedBytes))
	}
	fmt.Println("===================")
}

// missingSettings reports whether promptMissing has anything to ask.
func missingSettings(config *cfgPkg.Config) bool {
	return config.Server.Username == "" ||
		config.Server.Password == "" ||
		config.Server.URL == "" ||
		config.Storage.MediaRoot == ""
}

var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptMissing asks for the connection settings that neither the config
// file, the environment nor the flags provided.
func promptMissing(config *cfgPkg.Config, in *bufio.Reader, out io.Writer) error {
	ask := func(label string, target *string) error {
		if *target != "" {
			return nil
		}
		fmt.Fprintf(out, "%s: ", label)
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
		}
		*target = strings.TrimSpace(line)
		return nil
	}

	if err := ask("Username", &config.Server.Username); err != nil {
		return err
	}

	if config.Server.Password == "" {
		if stdinIsTerminal() {
			fmt.Fprint(out, "Password: ")
			secret, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			config.Server.Password = string(secret)
		} else if err := ask("Password", &config.Server.Password); err != nil {
			return err
		}
	}

	if err := ask("Url", &config.Server.URL); err != nil {
		return err
	}
	config.Server.URL = strings.TrimRight(config.Server.URL, "/")

	return ask("Path", &config.Storage.MediaRoot)
}

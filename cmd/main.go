package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	cfgPkg "github.com/xhad/edms-dedupe/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type flagValues struct {
	configPath      string
	url             string
	username        string
	password        string
	mediaRoot       string
	algorithm       string
	isolateFailures bool
	dryRun          bool
	timeout         time.Duration
	rateLimit       float64
	logLevel        string
	noColor         bool
	noProgress      bool
}

var flags flagValues

var rootCmd = &cobra.Command{
	Use:   "edms-dedupe",
	Short: "Find and delete duplicate documents on a Mayan EDMS server",
	Long: `edms-dedupe lists every document of a Mayan EDMS server, compares the
files behind them in the media directory by size and content hash, and asks
which copy of each duplicate group to keep. The other copies are deleted
through the API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), config, flags.dryRun)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("edms-dedupe version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	f := rootCmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Path to config file")
	f.StringVar(&flags.url, "url", "", "Mayan URL (env: URL)")
	f.StringVar(&flags.username, "username", "", "Mayan username (env: USERNAME)")
	f.StringVar(&flags.password, "password", "", "Mayan password (env: PASSWORD)")
	f.StringVar(&flags.mediaRoot, "path", "", "Mayan media directory (env: DOCUMENT_PATH)")
	f.StringVar(&flags.algorithm, "algorithm", "", "Content hash: md5, sha1 or sha256")
	f.BoolVar(&flags.isolateFailures, "isolate-failures", false, "Skip a size group whose files cannot be read instead of aborting")
	f.BoolVarP(&flags.dryRun, "dry-run", "n", false, "Ask for choices but do not delete anything")
	f.DurationVar(&flags.timeout, "timeout", 0, "HTTP request timeout")
	f.Float64Var(&flags.rateLimit, "rate-limit", 0, "Maximum API requests per second")
	f.StringVar(&flags.logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error (env: EDMS_LOG_LEVEL)")
	f.BoolVar(&flags.noColor, "no-color", false, "Disable colorized output")
	f.BoolVar(&flags.noProgress, "no-progress", false, "Disable progress bars")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then lets explicitly
// set flags win.
func loadConfig(cmd *cobra.Command) (*cfgPkg.Config, error) {
	config, err := cfgPkg.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		config.Server.URL = flags.url
	}
	if changed("username") {
		config.Server.Username = flags.username
	}
	if changed("password") {
		config.Server.Password = flags.password
	}
	if changed("path") {
		config.Storage.MediaRoot = flags.mediaRoot
	}
	if changed("algorithm") {
		config.Hashing.Algorithm = flags.algorithm
	}
	if changed("isolate-failures") {
		config.Hashing.IsolateFailures = flags.isolateFailures
	}
	if changed("timeout") {
		config.Server.Timeout = flags.timeout
	}
	if changed("rate-limit") {
		config.Server.RateLimit = flags.rateLimit
	}
	if changed("log-level") {
		config.Log.Level = flags.logLevel
	}
	if flags.noColor {
		off := false
		config.UI.Color = &off
	}
	if flags.noProgress {
		off := false
		config.UI.Progress = &off
	}

	return config, nil
}

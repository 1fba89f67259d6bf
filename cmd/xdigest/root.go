package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	twitter "github.com/anatolykoptev/go-twitter-digest"
	"github.com/anatolykoptev/go-twitter-digest/internal/browser"
	"github.com/anatolykoptev/go-twitter-digest/internal/config"
	"github.com/anatolykoptev/go-twitter-digest/internal/credentials"
	"github.com/anatolykoptev/go-twitter-digest/internal/pipeline"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	exitOK = iota
	exitConfig
	exitAuth
	exitFetch
)

var (
	flagConfig     string
	flagTokens     string
	flagCategories string
	flagMinLikes   int
	flagHours      float64
	flagMaxPages   int
	flagOutput     string
	flagNoOpen     bool
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "xdigest",
	Short: "Daily digest of your x.com Following timeline",
	Long: `xdigest fetches your chronological Following timeline with your browser
session cookies, keeps the tweets with enough likes from the last day,
groups them by author category and writes a markdown and an HTML digest.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(flagVerbose)
	},
	RunE: runDigest,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to config file (default "+config.DefaultPath()+")")
	pf.StringVar(&flagTokens, "tokens", "", "path to the token file (default "+config.DefaultCredentialsPath()+")")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	f := rootCmd.Flags()
	f.StringVar(&flagCategories, "categories", "", "category file (YAML or JSON)")
	f.IntVar(&flagMinLikes, "min-likes", 0, "minimum likes for a tweet to be included")
	f.Float64Var(&flagHours, "hours", 0, "only include tweets from the last N hours")
	f.IntVar(&flagMaxPages, "max-pages", 0, "maximum timeline pages to fetch")
	f.StringVarP(&flagOutput, "output", "o", "", "directory for the digest files")
	f.BoolVar(&flagNoOpen, "no-open", false, "do not open the HTML digest in a browser")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xdigest %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func tokenStore() *credentials.FileStore {
	path := flagTokens
	if path == "" {
		path = config.DefaultCredentialsPath()
	}
	return credentials.NewFileStore(path)
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("categories") {
		cfg.CategoriesFile = flagCategories
	}
	if f.Changed("min-likes") {
		cfg.MinLikes = flagMinLikes
	}
	if f.Changed("hours") {
		cfg.Hours = flagHours
	}
	if f.Changed("max-pages") {
		cfg.MaxPages = flagMaxPages
	}
	if f.Changed("output") {
		cfg.OutputDir = flagOutput
	}
	if flagNoOpen {
		cfg.OpenBrowser = false
	}
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	prompter := credentials.NewTerminalPrompter()
	if err := ensureQueryID(cfg, prompter, cmd.ErrOrStderr()); err != nil {
		return err
	}

	store := tokenStore()
	creds, err := credentials.Chain{
		credentials.Env{},
		store,
		credentials.Interactive{Prompter: prompter, Store: store},
	}.Credentials(ctx)
	if err != nil {
		return err
	}

	run, err := pipeline.New(pipeline.Options{
		Config:                 cfg,
		Credentials:            creds,
		OnCredentialsRefreshed: store.Update,
		Open:                   browser.Open,
	})
	creds.Wipe()
	if err != nil {
		return err
	}

	res, err := run.Execute(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), res)
	return nil
}

// ensureQueryID prompts for a missing query ID and records it in the config
// file. Only the query ID is written; flags given for this run are not.
func ensureQueryID(cfg *config.Config, p *credentials.Prompter, w io.Writer) error {
	if cfg.TimelineQueryID != "" {
		return nil
	}
	qid, err := p.QueryID()
	if err != nil {
		return err
	}
	if err := cfg.SaveQueryID(qid); err != nil {
		slog.Warn("could not save query ID", slog.String("path", cfg.Path), slog.Any("error", err))
		cfg.TimelineQueryID = qid
		return nil
	}
	fmt.Fprintf(w, "Saved query ID to %s\n", cfg.Path)
	return nil
}

// execute runs the CLI and maps the outcome onto the process exit code.
func execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	reportError(err)
	return exitCode(err)
}

func exitCode(err error) int {
	var (
		cfgErr  *twitter.ConfigurationError
		authErr *twitter.AuthenticationError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &authErr):
		return exitAuth
	case errors.As(err, &cfgErr):
		return exitConfig
	case isFetchError(err):
		return exitFetch
	}
	return exitConfig
}

func isFetchError(err error) bool {
	var (
		transient *twitter.TransientFetchError
		malformed *twitter.MalformedResponseError
	)
	return errors.As(err, &transient) || errors.As(err, &malformed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type remediator interface {
	Remediation() string
}

func reportError(err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, err)

	var r remediator
	if errors.As(err, &r) {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("hint:"), r.Remediation())
	}
}

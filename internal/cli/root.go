// Package cli defines the quill command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/app"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/logger"
)

const version = "0.1.0"

var (
	cfgFile    string
	logLevel   string
	model      string
	mode       string
	repoPath   string
	promptText string
	withGW     bool
	verbose    bool
)

// rootCmd starts an interactive session by default; --prompt switches to
// headless mode.
var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill - conversational coding agent",
	Long: `Quill is an interactive coding agent for your terminal.
It streams model output while you keep typing: prompts queue up and run
one at a time against the repository you point it at.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runSession,
}

// Execute runs the command tree. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.quill/quill.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&model, "model", "", "override the configured model")
	rootCmd.Flags().StringVar(&mode, "mode", "", "agent mode (default, async, plan)")
	rootCmd.Flags().StringVar(&repoPath, "repo-path", "", "repository to work against (default is the current directory)")
	rootCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "run a single prompt headlessly and exit")
	rootCmd.Flags().BoolVar(&withGW, "gateway", false, "expose the observer websocket feed")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr as well as the log file")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyOverrides(cfg)

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   verbose || cfg.Logging.Console,
		Pretty:    verbose,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	a, err := app.New(cfg, log, version)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// First Ctrl-C cancels the run in flight; with nothing running (or on
	// a second press) the session ends.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGTERM || !a.Interrupt() {
				cancel()
				return
			}
		}
	}()

	if promptText != "" {
		return a.RunHeadless(ctx, promptText)
	}
	return a.RunREPL(ctx)
}

// applyOverrides layers command-line flags over the loaded config.
func applyOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if model != "" {
		cfg.Agent.Model = model
	}
	if mode != "" {
		cfg.Agent.Mode = mode
	}
	if repoPath != "" {
		cfg.RepoPath = repoPath
	}
	if withGW {
		cfg.Gateway.Enabled = true
	}
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// Package cmd wires the command line interface to the tracker, the plan
// generator, and the file output.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/linear-agent/internal/anthropic"
	"github.com/danielolaszy/linear-agent/internal/config"
	"github.com/danielolaszy/linear-agent/internal/logging"
	"github.com/danielolaszy/linear-agent/internal/tracker"
	"github.com/danielolaszy/linear-agent/internal/tracker/jira"
	"github.com/danielolaszy/linear-agent/internal/tracker/linear"
	"github.com/danielolaszy/linear-agent/internal/ui"
	"github.com/danielolaszy/linear-agent/internal/update"
	"github.com/danielolaszy/linear-agent/internal/version"
)

var (
	flagEnvFile     string
	flagUser        string
	flagTeam        string
	flagStates      string
	flagModel       string
	flagProvider    string
	flagOutput      string
	flagTicketsDir  string
	flagTicketFile  string
	flagTicketID    string
	flagPlan        bool
	flagVerbose     bool
	flagSetup       bool
	flagCheckUpdate bool
)

var rootCmd = &cobra.Command{
	Use:   "linear-agent",
	Short: "Fetch tickets from your tracker and generate implementation plans",
	Long: `linear-agent lists tickets assigned to an agent user, enriches them with
labels, comments and linked tickets, and writes each one as a Markdown file.
With --plan it additionally asks the Anthropic API for an implementation plan
per ticket. Saved ticket files can be fed back in later with --ticket to plan
without contacting the tracker again.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVar(&flagEnvFile, "env", "", "path to an env-format configuration file")
	rootCmd.Flags().StringVar(&flagUser, "user", "", "list tickets assigned to this user")
	rootCmd.Flags().StringVar(&flagTeam, "team", "", "team (Linear) or project (Jira) to query")
	rootCmd.Flags().StringVar(&flagStates, "states", "", "comma-separated workflow states to include")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "Anthropic model for plan generation")
	rootCmd.Flags().StringVar(&flagProvider, "provider", "", "tracker backend: linear or jira")
	rootCmd.Flags().StringVar(&flagOutput, "output", "implementation_plans", "directory for generated plans")
	rootCmd.Flags().StringVar(&flagTicketsDir, "tickets-dir", "tickets", "directory for saved ticket files")
	rootCmd.Flags().StringVar(&flagTicketFile, "ticket", "", "generate a plan from a saved ticket file")
	rootCmd.Flags().StringVar(&flagTicketID, "ticket-id", "", "process a single ticket by identifier")
	rootCmd.Flags().BoolVar(&flagPlan, "plan", false, "generate an implementation plan per ticket")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&flagSetup, "setup", false, "run the interactive setup wizard")
	rootCmd.Flags().BoolVar(&flagCheckUpdate, "check-update", false, "check whether a newer release is available")
}

func run(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		logging.SetVerbose()
	}

	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)

	prompter := ui.NewPrompter(os.Stdin, os.Stdout)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if flagCheckUpdate {
		return runCheckUpdate(ctx, cfg, prompter)
	}
	if flagSetup {
		path := flagEnvFile
		if path == "" {
			if path, err = config.DefaultSavePath(); err != nil {
				return err
			}
		}
		if err := prompter.RunSetupWizard(cfg, path); err != nil {
			return err
		}
		verifyCredentials(ctx, cfg, prompter)
		return nil
	}

	w := &workflow{
		prompter:      prompter,
		cfg:           cfg,
		ticketsDir:    flagTicketsDir,
		plansDir:      flagOutput,
		generatePlans: flagPlan || flagTicketFile != "",
	}

	if w.generatePlans {
		if err := config.ValidatePlan(cfg); err != nil {
			return err
		}
		client, err := anthropic.NewClient(cfg.AnthropicAPIKey)
		if err != nil {
			return err
		}
		w.planner = client
	}

	// Planning from a saved ticket file never touches the tracker, so the
	// tracker credentials are not required for it.
	if flagTicketFile != "" {
		return w.runFromFile(ctx, flagTicketFile)
	}

	if err := config.ValidateTracker(cfg); err != nil {
		return err
	}
	if w.tracker, err = newTrackerClient(cfg); err != nil {
		return err
	}

	if flagTicketID != "" {
		return w.runSingle(ctx, flagTicketID)
	}
	return w.runInteractive(ctx)
}

// applyFlagOverrides applies explicit flags on top of the resolved
// configuration. Flags win over environment variables and the env file.
func applyFlagOverrides(cfg *config.Config) {
	if flagUser != "" {
		cfg.User = flagUser
	}
	if flagTeam != "" {
		cfg.Team = flagTeam
	}
	if flagStates != "" {
		cfg.States = config.SplitStates(flagStates)
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
}

func newTrackerClient(cfg *config.Config) (tracker.Client, error) {
	switch cfg.Provider {
	case config.ProviderLinear:
		return linear.NewClient(cfg)
	case config.ProviderJira:
		return jira.NewClient(cfg)
	default:
		return nil, fmt.Errorf("unknown tracker provider: %s", cfg.Provider)
	}
}

// verifyCredentials tests each configured API key and reports the result.
// Failures are informational: the configuration is already saved.
func verifyCredentials(ctx context.Context, cfg *config.Config, prompter *ui.Prompter) {
	if config.ValidateTracker(cfg) == nil {
		client, err := newTrackerClient(cfg)
		if err == nil {
			var name string
			if name, err = client.TestConnection(ctx); err == nil {
				prompter.Successf("Tracker connection OK (authenticated as %s)", name)
			}
		}
		if err != nil {
			prompter.Errorf("Tracker connection failed: %v", err)
		}
	}

	if cfg.AnthropicAPIKey != "" {
		client, err := anthropic.NewClient(cfg.AnthropicAPIKey)
		if err == nil {
			if err = client.TestConnection(ctx, cfg.Model); err == nil {
				prompter.Successf("Anthropic connection OK (model %s)", cfg.Model)
			}
		}
		if err != nil {
			prompter.Errorf("Anthropic connection failed: %v", err)
		}
	}
}

func runCheckUpdate(ctx context.Context, cfg *config.Config, prompter *ui.Prompter) error {
	checker := update.NewChecker(cfg.GitHubToken)
	outdated, latest, err := checker.Check(ctx, version.Version)
	if err != nil {
		return err
	}
	if outdated {
		prompter.Infof("A newer version is available: %s (current: %s)", latest, version.Version)
	} else {
		prompter.Infof("Already up to date (%s)", version.Version)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/meysamhadeli/scaffai/artifact_store"
	"github.com/meysamhadeli/scaffai/config"
	"github.com/meysamhadeli/scaffai/constants/lipgloss"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/providers"
	"github.com/meysamhadeli/scaffai/providers/contracts"
	"github.com/meysamhadeli/scaffai/providers/middleware"
	"github.com/meysamhadeli/scaffai/token_management"
	contracts_token "github.com/meysamhadeli/scaffai/token_management/contracts"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// RootDependencies carries everything a subcommand needs, built once per invocation.
type RootDependencies struct {
	Config          *config.Config
	Cwd             string
	Logger          *logging.Logger
	Profile         languages.Profile
	TokenManagement contracts_token.ITokenManagement
	CacheStore      *middleware.DiskStore
	CacheStats      *middleware.CacheStats
	Out             io.Writer
	// Interactive is true when stdout is a terminal: spinners and colours are used.
	Interactive bool
}

var rootCmd = &cobra.Command{
	Use:   "scaffai",
	Short: "Generate a project skeleton with an AI model and repair it until its tests pass.",
	Long: `scaffai turns a short project description into source files: one per module,
with the functions you list, then runs the project's test suite and asks the model
for fixes until the suite passes or the iteration budget runs out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if version, _ := cmd.Flags().GetBool("version"); version {
			fmt.Println(lipgloss.BlueSky.Render(fmt.Sprintf("version: %s", config.DefaultConfig.Version)))
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	config.InitFlags(rootCmd)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, lipgloss.Red.Render(fmt.Sprintf("Error: %v", err)))
		return 1
	}
	return 0
}

func handleRootCommand(cmd *cobra.Command) (*RootDependencies, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	cfg, err := config.LoadConfigs(cmd.Root(), cwd)
	if err != nil {
		return nil, err
	}

	profile, err := languages.Lookup(cfg.Language)
	if err != nil {
		return nil, err
	}

	deps := &RootDependencies{
		Config:          cfg,
		Cwd:             cwd,
		Logger:          logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr),
		Profile:         profile,
		TokenManagement: token_management.NewTokenManager(),
		CacheStats:      middleware.NewCacheStats(),
		Out:             os.Stdout,
		Interactive:     isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}

	if source := config.ConfigSource(cmd.Root(), cwd); source != "" {
		deps.Logger.Debug("configuration loaded", "file", source)
	}

	if cfg.EnableCache {
		dir := cfg.CacheDir
		if dir != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(cwd, dir)
		}
		store, err := middleware.NewDiskStore(dir)
		if err != nil {
			deps.Logger.Warn("skeleton cache disabled", "error", err)
		} else {
			deps.CacheStore = store
		}
	}

	return deps, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Generator builds the configured provider with logging, the optional skeleton
// cache and the per-call timeout.
func (d *RootDependencies) Generator() (contracts.IGenerator, error) {
	var cache middleware.Middleware
	if d.Config.EnableCache {
		mw, err := middleware.Cache(middleware.CacheOptions{
			Namespace: d.Config.AIProviderConfig.Model,
			Store:     d.CacheStore,
			Stats:     d.CacheStats,
			Logger:    d.Logger,
		})
		if err != nil {
			return nil, err
		}
		cache = mw
	}
	return providers.NewGenerator(d.Config.AIProviderConfig, d.TokenManagement, d.Logger, cache)
}

// Workspace binds the artifact store of project for profile.
func (d *RootDependencies) Workspace(project string, profile languages.Profile) (*artifact_store.Store, error) {
	root := d.Config.WorkspaceRoot
	if !filepath.IsAbs(root) {
		root = filepath.Join(d.Cwd, root)
	}
	return artifact_store.NewStore(root, project, profile.Extension, d.Logger)
}

func (d *RootDependencies) displayTokens() {
	d.TokenManagement.DisplayTokens(d.Config.AIProviderConfig.Provider, d.Config.AIProviderConfig.Model)
}

func (d *RootDependencies) displayCacheStats() {
	if !d.Config.EnableCache {
		return
	}
	snapshot := d.CacheStats.Snapshot()
	if snapshot.TotalRequests == 0 {
		return
	}
	fmt.Fprintln(d.Out, lipgloss.Info.Render(fmt.Sprintf(
		"Skeleton cache: %d requests, %d memory hits, %d disk hits, %.1f%% hit rate",
		snapshot.TotalRequests, snapshot.MemoryHits, snapshot.DiskHits, snapshot.HitRate)))
}

// progress shows a spinner on a terminal and plain log lines otherwise.
type progress struct {
	spinner *pterm.SpinnerPrinter
	logger  *logging.Logger
}

func (d *RootDependencies) startProgress(text string) *progress {
	p := &progress{logger: d.Logger}
	if d.Interactive {
		spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
			WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
			WithDelay(100).WithRemoveWhenDone(true)
		if started, err := spinner.Start(text); err == nil {
			p.spinner = started
			return p
		}
	}
	p.logger.Info(text)
	return p
}

func (p *progress) Update(text string) {
	if p.spinner != nil {
		p.spinner.UpdateText(text)
		return
	}
	p.logger.Info(text)
}

func (p *progress) Stop() {
	if p.spinner != nil {
		_ = p.spinner.Stop()
		p.spinner = nil
		fmt.Print("\r")
	}
}

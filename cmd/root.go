package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/alantheprice/housegen/pkg/configuration"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions carries the persistent flags and the viper instance they are
// bound to. Each command tree gets its own.
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

// load builds and validates the effective configuration.
func (o *rootOptions) load() (*configuration.Config, error) {
	cfg, err := configuration.Load(o.v, o.configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "housegen",
		Short: "Turn a house description into a floor plan and rendered images",
		Long: `Housegen takes a free-text description of a house, checks that it is an
architecture request, asks a language model for a structured floor plan and
renders one image per room plus one of the exterior.

Available commands:
  generate - Validate, plan and render in one go
  validate - Only classify a description
  plan     - Only produce a floor plan
  render   - Render a saved plan.json
  config   - Print the effective configuration

Settings come from ./housegen.yaml, HOUSEGEN_* environment variables and flags.
The API key may also be given as OPENROUTER_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default is ./housegen.yaml)")
	pf.String("provider", "", "text provider for validation and planning (openrouter, ollama)")
	pf.String("endpoint", "", "chat-completions endpoint")
	pf.StringP("output", "o", "", "directory for rendered images and plan.json")
	pf.Bool("strict-domain", false, "abort when the request is not about house design")
	pf.Bool("json-logs", false, "write JSON lines to the log file")
	pf.String("metrics-file", "", "write Prometheus metrics to this file after each run")
	pf.Bool("debug", false, "log provider traffic")

	bindings := map[string]string{
		"provider.type":                 "provider",
		"provider.endpoint":             "endpoint",
		"output.dir":                    "output",
		"pipeline.require_valid_domain": "strict-domain",
		"logging.json":                  "json-logs",
		"output.metrics_file":           "metrics-file",
		"provider.debug":                "debug",
	}
	for key, flag := range bindings {
		_ = opts.v.BindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.AddCommand(
		newGenerateCmd(opts),
		newValidateCmd(opts),
		newPlanCmd(opts),
		newRenderCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	addVersionFlag(rootCmd)
	return rootCmd
}

// Execute builds the command tree and runs it until completion or interrupt.
// This is called by main.main().
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// Package cmd implements the squeezejpg command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harriteja/squeezejpg/internal/config"
)

// NewRootCommand builds the squeezejpg command with its own configuration state
func NewRootCommand() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "squeezejpg [flags] [dir|file]...",
		Short: "Recompress JPEG images in parallel",
		Long: `squeezejpg recompresses every JPEG found in the given directories
(or the current directory) using a pool of workers, and writes the
results into an output directory.

Directories are not traversed recursively.`,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			return config.Init(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			return runBatch(cmd, cfg, args)
		},
	}

	flags := rootCmd.Flags()
	flags.StringP("config", "c", "", "config file (default is ./squeezejpg.yaml or $HOME/.config/squeezejpg/squeezejpg.yaml)")
	flags.IntP("quality", "q", 0, "JPEG quality, 1-100 (default 95)")
	flags.IntP("workers", "w", 0, "number of compression workers (default 4)")
	flags.Bool("ordered", false, "write results in input order")
	flags.StringP("output", "o", "", "output directory (default \"compressed\")")
	flags.StringP("prefix", "p", "", "prefix for output file names")
	flags.StringSlice("ext", nil, "accepted file extensions (default .jpg,.jpeg)")
	flags.Int("read-concurrency", 0, "maximum concurrent file reads and writes (default 8)")
	flags.String("log-level", "", "log level: DEBUG, INFO, WARN, ERROR (default INFO)")
	flags.String("log-dir", "", "write logs to a file in this directory instead of stderr")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")

	// Flags only override config values when set explicitly
	bindings := map[string]string{
		"quality":                "quality",
		"workers":                "workers",
		"ordered":                "ordered",
		"output.dir":             "output",
		"output.prefix":          "prefix",
		"input.extensions":       "ext",
		"input.read_concurrency": "read-concurrency",
		"log.level":              "log-level",
		"log.dir":                "log-dir",
		"metrics.addr":           "metrics-addr",
	}
	for key, name := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

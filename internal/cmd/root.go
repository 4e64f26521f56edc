package cmd

import (
	"fmt"
	"strings"

	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/adamancini/entity-cleaner/internal/output"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	hostURL      string
	verbose      bool
	quiet        bool
)

// appVersion is set from the build by Execute.
var appVersion = "dev"

var logger = loggo.GetLogger("entitycleaner.cmd")

func Execute(version, commit, date string) error {
	appVersion = version
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "entity-cleaner",
		Short: "Find and remove stale entities from the home-automation registry",
		Long: `entity-cleaner finds entity registry entries whose devices are gone:
entities with no live state at all, and entities stuck unavailable or unknown
for a number of days. It can remove them, optionally after a full backup.

Run 'entity-cleaner serve' to provide the sidebar panel and its websocket
commands, or use the subcommands directly from a shell.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			return configureLogging("")
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&hostURL, "host-url", "", "Host base URL, overriding the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCandidatesCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return output.AllFormats(), cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// configureLogging sets the root log level. -v and -q win over level, which
// normally comes from the config file; an empty level means WARNING so that
// one-shot commands stay quiet.
func configureLogging(level string) error {
	switch {
	case verbose:
		level = "DEBUG"
	case quiet:
		level = "ERROR"
	case level == "":
		level = "WARNING"
	}

	if _, ok := loggo.ParseLevel(level); !ok {
		return fmt.Errorf("invalid log level %q", level)
	}
	loggo.DefaultContext().ResetLoggerLevels()
	return loggo.ConfigureLoggers("<root>=" + strings.ToUpper(level))
}

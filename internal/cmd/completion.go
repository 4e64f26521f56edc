package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for entity-cleaner.

To load completions:

Bash:
  $ source <(entity-cleaner completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ entity-cleaner completion bash > /etc/bash_completion.d/entity-cleaner
  # macOS:
  $ entity-cleaner completion bash > $(brew --prefix)/etc/bash_completion.d/entity-cleaner

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ entity-cleaner completion zsh > "${fpath[1]}/_entity-cleaner"

  # You will need to start a new shell for this setup to take effect.

  # Oh My Zsh:
  $ mkdir -p ~/.oh-my-zsh/completions
  $ entity-cleaner completion zsh > ~/.oh-my-zsh/completions/_entity-cleaner

Fish:
  $ entity-cleaner completion fish > ~/.config/fish/completions/entity-cleaner.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			}
			return nil
		},
	}
}

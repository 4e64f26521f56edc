package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/entity-cleaner/internal/config"
	"github.com/adamancini/entity-cleaner/internal/templates"
)

func newInitCmd() *cobra.Command {
	var templateName string
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file from a template",
		Long: `Create a new entity-cleaner config file from a built-in or custom template.

Available templates:
  minimal     - Host URL, token and panel assets
  supervisor  - Running as a supervisor add-on
  full        - Every option with its default

Secrets such as ${HASS_TOKEN} are written as references and expanded from
the environment each time the config is loaded.

Examples:
  entity-cleaner init                              # Interactive mode
  entity-cleaner init --template=minimal           # Direct template selection
  entity-cleaner init --template=supervisor
  entity-cleaner init --template=https://...       # Custom template URL
  entity-cleaner init --path ~/entity-cleaner.yaml # Custom output location`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Template name or URL")
	cmd.Flags().StringVar(&outputPath, "path", "", "Output path for the config file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	// Register completion for template flag
	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit executes the init workflow.
func runInit(stdin io.Reader, stdout, stderr io.Writer, templateName, outputPath string, force bool) error {
	reader := bufio.NewReader(stdin)
	interactiveMode := templateName == ""

	if outputPath == "" {
		outputPath = getDefaultConfigPath()
	}
	outputPath = expandHomePath(outputPath)

	if templateName == "" {
		selected, err := selectTemplateInteractive(reader, stdout)
		if err != nil {
			return err
		}
		templateName = selected
	}

	var content []byte
	selectedTemplate := templateName
	formatHint := templateName + ".yaml"
	if strings.HasPrefix(templateName, "http://") || strings.HasPrefix(templateName, "https://") {
		var err error
		content, err = fetchRemoteTemplate(templateName)
		if err != nil {
			return fmt.Errorf("failed to fetch template: %w", err)
		}
		selectedTemplate = "custom"
		formatHint = templateName
	} else {
		tmpl, err := templates.Get(templateName)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		content = tmpl.Content
	}

	if err := validateTemplateContent(formatHint, content); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	if interactiveMode && !quiet {
		printPreview(stdout, selectedTemplate, content)

		_, _ = fmt.Fprintf(stdout, "\nWhere should I create the config file? [%s]: ", outputPath)
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			outputPath = expandHomePath(answer)
		}
	}

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Config file already exists at %s\n", outputPath)
		_, _ = fmt.Fprintf(stdout, "Overwrite? [y/N]: ")
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}

	// The file may hold a token once edited.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "\nCreated %s\n", outputPath)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Set HASS_TOKEN to a long-lived access token, or edit host.token")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'entity-cleaner candidates' to list stale entities")
	_, _ = fmt.Fprintln(stdout, "  3. Run 'entity-cleaner serve' to provide the sidebar panel")

	return nil
}

func printPreview(stdout io.Writer, name string, content []byte) {
	const maxLines = 20

	_, _ = fmt.Fprintf(stdout, "\nPreview of '%s' template:\n", name)
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) <= maxLines {
		_, _ = fmt.Fprintln(stdout, strings.Join(lines, "\n"))
	} else {
		_, _ = fmt.Fprintln(stdout, strings.Join(lines[:maxLines], "\n"))
		_, _ = fmt.Fprintf(stdout, "... (%d more lines)\n", len(lines)-maxLines)
	}
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))
}

// selectTemplateInteractive shows an interactive menu for template selection.
func selectTemplateInteractive(reader *bufio.Reader, stdout io.Writer) (string, error) {
	templateList := templates.List()

	_, _ = fmt.Fprintln(stdout, "\nSelect a config template:")
	for i, name := range templateList {
		_, _ = fmt.Fprintf(stdout, "  %d. %-12s - %s\n", i+1, name, templates.GetDescription(name))
	}
	_, _ = fmt.Fprintf(stdout, "  %d. %-12s - Provide custom template URL\n", len(templateList)+1, "custom")

	_, _ = fmt.Fprintf(stdout, "\nSelect [1-%d]: ", len(templateList)+1)

	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return templates.Default, nil
	}

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(templateList)+1 {
		return "", fmt.Errorf("invalid selection: %s", answer)
	}

	if num == len(templateList)+1 {
		_, _ = fmt.Fprint(stdout, "Enter template URL: ")
		url, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read URL: %w", err)
		}
		return strings.TrimSpace(url), nil
	}

	return templateList[num-1], nil
}

// fetchRemoteTemplate downloads a template from a URL.
func fetchRemoteTemplate(url string) ([]byte, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return content, nil
}

// validateTemplateContent checks that content parses as a valid config file.
// The token is usually an unset ${HASS_TOKEN} reference at this point, so its
// presence is not checked.
func validateTemplateContent(name string, content []byte) error {
	cfg, err := config.Parse(name, content)
	if err != nil {
		return err
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	if cfg.Host.Token == "" {
		cfg.Host.Token = "unset"
	}
	return config.Validate(cfg)
}

// getDefaultConfigPath returns where init writes when no path is given.
func getDefaultConfigPath() string {
	path, err := config.DefaultPath()
	if err != nil {
		return "entity-cleaner.yaml"
	}
	return path
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adamancini/entity-cleaner/internal/cleaner"
	"github.com/adamancini/entity-cleaner/internal/types"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Remove this entity
	ResponseNo                   // Keep this entity
	ResponseAll                  // Remove all remaining entities
	ResponseQuit                 // Abort without removing anything
)

// Prompter asks which candidates to remove.
type Prompter struct {
	out        io.Writer
	scanner    *bufio.Scanner
	approveAll bool
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response.
func (p *Prompter) prompt(format string, args ...any) Response {
	if p.approveAll {
		return ResponseYes
	}

	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n/a/q] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	switch input {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "a", "all":
		p.approveAll = true
		return ResponseYes
	case "q", "quit":
		return ResponseQuit
	default:
		// Default to no for invalid input
		_, _ = fmt.Fprintln(p.out, "Invalid response, skipping.")
		return ResponseNo
	}
}

// Confirm asks a plain yes/no question. Anything but yes is no.
func (p *Prompter) Confirm(question string) bool {
	_, _ = fmt.Fprintf(p.out, "%s [y/n] ", question)
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}

// SelectForDeletion asks about each candidate in turn and returns the ids
// approved for removal. proceed is false if the user quit, selected nothing,
// or declined the final confirmation.
func (p *Prompter) SelectForDeletion(candidates []cleaner.Candidate) (ids []string, proceed bool) {
	skipped := 0

	_, _ = fmt.Fprintln(p.out, "\nCandidates:")
	for _, c := range candidates {
		_, _ = fmt.Fprintf(p.out, "  %s %s (%s)\n", removeSymbol, c.EntityID, describe(c))

		switch p.prompt("    -> Remove %s?", c.Name) {
		case ResponseYes:
			ids = append(ids, c.EntityID)
		case ResponseQuit:
			_, _ = fmt.Fprintln(p.out, "\nAborted.")
			return nil, false
		default:
			_, _ = fmt.Fprintf(p.out, "    %s Skipped\n", skipSymbol)
			skipped++
		}
	}

	_, _ = fmt.Fprintln(p.out, "\nSummary:")
	_, _ = fmt.Fprintf(p.out, "  Will remove: %d entities\n", len(ids))
	if skipped > 0 {
		_, _ = fmt.Fprintf(p.out, "  Skipped: %d\n", skipped)
	}

	if len(ids) == 0 {
		_, _ = fmt.Fprintln(p.out, "Nothing selected.")
		return nil, false
	}

	if !p.Confirm("\nRemove these entities from the registry?") {
		_, _ = fmt.Fprintln(p.out, "Aborted.")
		return ids, false
	}
	return ids, true
}

func describe(c cleaner.Candidate) string {
	switch {
	case c.Status == types.StatusOrphaned:
		return "orphaned, no live state"
	case c.DaysUnavailable < 0:
		return fmt.Sprintf("%s, last change unknown", c.Status)
	default:
		return fmt.Sprintf("%s for %d days", c.Status, c.DaysUnavailable)
	}
}

// Symbols for output
const (
	removeSymbol = "-"
	skipSymbol   = "~"
)

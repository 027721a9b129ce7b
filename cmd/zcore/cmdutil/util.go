// Package cmdutil provides shared utilities for zcore commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/marmos91/zcore/internal/cli/output"
	"github.com/marmos91/zcore/internal/cli/prompt"
	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/pkg/config"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	NoColor    bool
}

// LoadConfig loads the zcore configuration honoring the --config flag.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// WithRuntime loads the configuration, builds the engine runtime and
// hands both to fn, closing everything afterwards.
//
// Logs go to stderr so table and JSON output on stdout stay clean.
func WithRuntime(fn func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger.InitWithWriter(os.Stderr, cfg.Logging.Level, "text", !Flags.NoColor)

	rt, err := config.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			logger.Warn("Failed to close runtime", "error", cerr)
		}
	}()

	return fn(context.Background(), cfg, rt)
}

// OutputFormat returns the parsed output format from the global flag.
func OutputFormat() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// Printer builds a Printer for stdout honoring the global flags.
func Printer() (*output.Printer, error) {
	format, err := OutputFormat()
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, !Flags.NoColor), nil
}

// PrintOutput prints data in the selected format. For table format it
// displays emptyMsg if the data is empty, otherwise the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := OutputFormat()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, format, !Flags.NoColor)
	printer.Success(msg)
}

// ConfirmDestroy prompts before a destructive operation unless force is
// set. Returns false with a nil error when the user declines or aborts.
func ConfirmDestroy(label string, force bool) (bool, error) {
	confirmed, err := prompt.ConfirmWithForce(label, force)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return false, nil
		}
		return false, err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return false, nil
	}
	return true, nil
}

// BatchResult reports a destroy-style batch: the requested names plus
// the ones that were already absent.
type BatchResult struct {
	Requested  []string `json:"requested"`
	SoftMisses []string `json:"soft_misses,omitempty"`
}

// PrintBatchResult renders a destroy-style outcome. Table format prints
// a success line and one line per already-absent target; JSON and YAML
// print the full result.
func PrintBatchResult(w io.Writer, result BatchResult, verb string) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, result)
	case output.FormatYAML:
		return output.PrintYAML(w, result)
	default:
		printer := output.NewPrinter(w, format, !Flags.NoColor)
		printer.Success(fmt.Sprintf("%d target(s) %s", len(result.Requested), verb))
		for _, name := range result.SoftMisses {
			printer.Printf("  already absent: %s\n", name)
		}
		return nil
	}
}

// ParseProperties parses repeated "key=value" flags into the property
// map the engine accepts. Unsigned integer values become uint64,
// everything else stays a string.
func ParseProperties(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	props := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid property %q: want key=value", pair)
		}
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			props[key] = n
		} else {
			props[key] = value
		}
	}
	return props, nil
}

// EmptyOr returns the value if not empty, otherwise the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

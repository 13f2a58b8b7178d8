package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-bytecode-flow/internal/config"
	"github.com/l3aro/go-bytecode-flow/internal/healthcheck"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a gbf configuration interactively",
	Long: `Guides you through setting up gbf configuration step by step: the class
hierarchy used for reference merges, analysis limits and where to save.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.OutOrStdout())
	},
}

func runInit(w io.Writer) error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Class Hierarchy ===
	var hierarchyFiles string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Class Hierarchy").
				Description("Include the builtin JDK class subset (collections, strings, exceptions)?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.BuiltinHierarchy),
			huh.NewInput().
				Title("Extra hierarchy files (comma separated, optional)").
				Placeholder("classes.yaml").
				Value(&hierarchyFiles),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.HierarchyFiles = splitFiles(hierarchyFiles)

	// === SECTION 2: Analysis ===
	workers := strconv.Itoa(cfg.Workers)
	maxVisits := strconv.Itoa(cfg.MaxVisitsPerBlock)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Strict mode").
				Description("Fail gbf check when any frame is wonky?").
				Affirmative("Strict").
				Negative("Report only").
				Value(&cfg.Strict),
			huh.NewInput().
				Title("Concurrent workers for gbf check").
				Value(&workers).
				Validate(positiveInt),
			huh.NewInput().
				Title("Block visits allowed per basic block").
				Value(&maxVisits).
				Validate(positiveInt),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Info", "info"),
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&cfg.LogLevel),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Workers, _ = strconv.Atoi(workers)
	cfg.MaxVisitsPerBlock, _ = strconv.Atoi(maxVisits)

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.gbf/config.yaml)", "project"),
					huh.NewOption("Global (~/.gbf/config.yaml)", "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigPath(".")
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Fprintln(w, "\n=== Configuration Preview ===")
	fmt.Fprintf(w, "Config path: %s\n", configPath)
	fmt.Fprintf(w, "Builtin hierarchy: %v\n", cfg.BuiltinHierarchy)
	fmt.Fprintf(w, "Hierarchy files: %v\n", cfg.HierarchyFiles)
	fmt.Fprintf(w, "Strict: %v\n", cfg.Strict)
	fmt.Fprintf(w, "Workers: %d\n", cfg.Workers)
	fmt.Fprintf(w, "Max visits per block: %d\n", cfg.MaxVisitsPerBlock)
	fmt.Fprintf(w, "Log level: %s\n", cfg.LogLevel)
	fmt.Fprintln(w, "================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(w, "Configuration saved to: %s\n", configPath)

	fmt.Fprintln(w, "\n=== Running Health Check ===")
	result, err := healthcheck.Check(cfg, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	printHealth(w, result)
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

// splitFiles splits a comma separated list, dropping blanks.
func splitFiles(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func init() {
	RootCmd.AddCommand(initCmd)
}

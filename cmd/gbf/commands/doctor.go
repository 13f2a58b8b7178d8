package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-bytecode-flow/internal/config"
	"github.com/l3aro/go-bytecode-flow/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the configuration",
	Long: `Checks the configuration: hierarchy files parse, the class table builds
and the results cache directory is writable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(".")
		if err != nil {
			return err
		}

		path := effectiveConfigPath(".")
		result, err := healthcheck.Check(e.cfg, path, path)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		printHealth(cmd.OutOrStdout(), result)
		if result.HasError() {
			return fmt.Errorf("health check failed: configuration cannot drive an analysis")
		}
		return nil
	},
}

// effectiveConfigPath returns the highest priority config file that exists,
// or "" when only defaults apply.
func effectiveConfigPath(dir string) string {
	if configFile != "" {
		return configFile
	}
	for _, p := range []string{config.ProjectConfigPath(dir), config.GlobalConfigPath()} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// printHealth displays health check results.
func printHealth(w io.Writer, result *healthcheck.HealthCheckResult) {
	switch {
	case result.EffectivePath == "":
		fmt.Fprintln(w, "Config: defaults (no config file found)")
	case result.EffectiveScope == "global":
		fmt.Fprintf(w, "Config Scope: global\nConfig Path: %s\n", result.EffectivePath)
	default:
		absPath, _ := filepath.Abs(result.EffectivePath)
		fmt.Fprintf(w, "Config Scope: %s\nConfig Path: %s\n", result.EffectiveScope, absPath)
	}

	for _, f := range result.HierarchyFiles {
		printItem(w, "Hierarchy file", f)
	}
	printItem(w, "Class hierarchy", result.Hierarchy)
	printItem(w, "Cache directory", result.CacheDir)
}

func printItem(w io.Writer, title string, st healthcheck.ItemStatus) {
	fmt.Fprintf(w, "\n%s: %s\n", title, st.Status)
	fmt.Fprintf(w, "  %s\n", st.Name)
	if st.Detail != "" {
		fmt.Fprintf(w, "  %s\n", st.Detail)
	}
	if st.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", st.Error)
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

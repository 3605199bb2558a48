package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projectlens/internal/output"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
)

var (
	subsystemsProfile string
	subsystemsYAML    bool
)

var subsystemsCmd = &cobra.Command{
	Use:   "subsystems",
	Short: "Print the active subsystem profile",
	Long: `Subsystems lists the subsystems that 'analyze' scores, with their paths,
score formulas and recommendation rules. With --yaml the profile is printed
in the same format accepted by --profile, which is a convenient starting
point for a custom profile.`,
	RunE: runSubsystems,
}

func init() {
	subsystemsCmd.Flags().StringVar(&subsystemsProfile, "profile", "", "YAML subsystem profile to print instead of the configured one")
	subsystemsCmd.Flags().BoolVar(&subsystemsYAML, "yaml", false, "Print the profile as YAML")
	rootCmd.AddCommand(subsystemsCmd)
}

func runSubsystems(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	defs, err := loadProfile(subsystemsProfile, e.cfg)
	if err != nil {
		return err
	}

	if flagJSON {
		return writeJSON(defs)
	}
	if subsystemsYAML {
		data, err := subsystem.Marshal(defs)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	fmt.Println(output.Section("Subsystems"))
	fmt.Println()
	tbl := output.NewTable("Name", "Path", "Base", "Terms", "Rules")
	for _, d := range defs {
		path := d.Path
		if path == "" {
			path = "."
		}
		tbl.AddRow(d.Name, path, fmt.Sprintf("%.2f", d.Formula.Base),
			fmt.Sprintf("%d", len(d.Formula.Terms)), ruleSummary(d))
	}
	tbl.Print()
	fmt.Println()
	return nil
}

// ruleSummary lists the priorities of a subsystem's rules, e.g. "HIGH, MEDIUM".
func ruleSummary(d subsystem.Definition) string {
	rules := d.EffectiveRules()
	if len(rules) == 0 {
		return output.StyleMuted.Render("none")
	}
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		parts = append(parts, string(r.Priority))
	}
	return strings.Join(parts, ", ")
}

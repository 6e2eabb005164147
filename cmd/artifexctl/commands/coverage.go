package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MarisolVega/artifex/internal/coverage"
	"github.com/MarisolVega/artifex/internal/semstore"
)

var coverageJSON bool

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Compute the capability coverage diff",
	Long: `Compute which capabilities no decision serves, which served
capabilities lack an implementing story, and which decisions, entities
and stories are affected by capability supersessions.

Pure read over the semantic store and the artifact graph.`,
	RunE: runCoverage,
}

func init() {
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(coverageCmd)
}

func runCoverage(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	sem, err := semstore.New(semstore.DefaultConfig(root))
	if err != nil {
		return err
	}
	defer func() { _ = sem.Close() }()

	caps, err := capabilityInputs(sem)
	if err != nil {
		return err
	}

	graph := store.Graph()
	diff := coverage.Compute(caps, graph.Decisions, graph.Entities, graph.Stories)

	if coverageJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}

	printIDSection("Uncovered capabilities", diff.UncoveredCapabilities)
	printIDSection("Served capabilities without stories", diff.CapabilitiesWithoutStories)
	printIDSection("Affected decisions", diff.AffectedDecisions)
	printIDSection("Affected entities", diff.AffectedEntities)
	printIDSection("Affected stories", diff.AffectedStories)
	return nil
}

func printIDSection(title string, ids []string) {
	fmt.Printf("%s:\n", title)
	if len(ids) == 0 {
		fmt.Println("  (none)")
	}
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
	fmt.Println()
}

// capabilityInputs projects capability records, full chains included,
// into the diff's minimal view.
func capabilityInputs(sem *semstore.Store) ([]coverage.Capability, error) {
	active, err := sem.ListActive(semstore.TypeCapability)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var caps []coverage.Capability
	for _, rec := range active {
		chain, err := sem.Chain(rec.ID)
		if err != nil {
			return nil, err
		}
		for _, link := range chain {
			if seen[link.ID] {
				continue
			}
			seen[link.ID] = true
			caps = append(caps, coverage.Capability{
				ID:           link.ID,
				Subtype:      string(link.Subtype),
				SupersededBy: link.SupersededBy,
			})
		}
	}
	return caps, nil
}

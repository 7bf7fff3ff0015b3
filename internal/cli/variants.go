package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"toolbench/internal/variant"
)

// VariantsCmd lists the variants.
type VariantsCmd struct{}

// Run prints one row per variant.
func (c *VariantsCmd) Run(env *appEnv) error {
	w := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tALIASES\tMAX STEPS\tDESCRIPTION")
	for _, def := range variant.All() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", def.Name, strings.Join(def.Aliases, ", "), def.MaxSteps, def.Description)
	}
	return w.Flush()
}

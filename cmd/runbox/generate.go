// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"runbox-cli/internal/meta"
	"runbox-cli/internal/pack"
	"runbox-cli/internal/source"

	"github.com/spf13/cobra"
)

var (
	generateSubDir      string
	generateTag         string
	generateRefresh     bool
	generateName        string
	generateInterpreter string
	generateEntrypoint  string
	generateType        string

	generateCmd = &cobra.Command{
		Use:   "generate <root>",
		Short: "Analyze a project and persist its run metadata",
		Long: `Analyze a project reference (a local directory or a remote git
repository), classify its language, pick an entrypoint, and persist the
decisions as project metadata. Regenerating replaces the previous record
wholesale. Field-level flags override whatever detection finds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			overrides, err := generateOverrides()
			if err != nil {
				return err
			}

			resolved, err := newResolver().Resolve(ctx, source.Reference{
				Target:  args[0],
				Tag:     generateTag,
				SubDir:  generateSubDir,
				Refresh: generateRefresh,
			})
			if err != nil {
				return err
			}

			p, err := analyzeAndPersist(ctx, resolved.Root, overrides)
			if err != nil {
				return err
			}

			fmt.Println(SuccessStyle.Render("✓ ") + "metadata generated for " + CmdStyle.Render(p.Name))
			fmt.Printf("  type:        %s\n", p.Type)
			fmt.Printf("  entrypoint:  %s\n", p.Entrypoint)
			fmt.Printf("  interpreter: %s\n", p.Interpreter)
			fmt.Printf("  record:      %s\n", meta.NewStore(resolved.Root).Path())
			return nil
		},
	}
)

func init() {
	generateCmd.Flags().StringVar(&generateSubDir, "sub-dir", "", "narrow the project root to a sub-directory")
	generateCmd.Flags().StringVar(&generateTag, "tag", "", "tag to fetch for remote references (default \"latest\")")
	generateCmd.Flags().BoolVar(&generateRefresh, "refresh", false, "refetch the source even on a cache hit")
	generateCmd.Flags().StringVar(&generateName, "name", "", "override the detected project name")
	generateCmd.Flags().StringVar(&generateInterpreter, "interpreter", "", "override the detected interpreter")
	generateCmd.Flags().StringVar(&generateEntrypoint, "entrypoint", "", "override the selected entrypoint")
	generateCmd.Flags().StringVar(&generateType, "type", "", "override the detected project type (python|node|shell|other)")
}

func generateOverrides() (pack.Overrides, error) {
	overrides := pack.Overrides{
		Name:        generateName,
		Interpreter: generateInterpreter,
		Entrypoint:  generateEntrypoint,
	}
	if generateType != "" {
		t, err := pack.ParseType(generateType)
		if err != nil {
			return pack.Overrides{}, err
		}
		overrides.Type = t
	}
	return overrides, nil
}

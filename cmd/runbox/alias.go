// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"runbox-cli/internal/alias"

	"github.com/spf13/cobra"
)

var (
	aliasCmd = &cobra.Command{
		Use:   "alias",
		Short: "Manage recorded run aliases",
	}

	aliasListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded aliases",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store := alias.NewStore(cfg.RootDir)
			aliases, err := store.List()
			if err != nil {
				return err
			}
			if len(aliases) == 0 {
				fmt.Println(SubtitleStyle.Render("no aliases recorded yet; use 'runbox run <root> --alias <name>'"))
				return nil
			}

			names, err := store.Names()
			if err != nil {
				return err
			}
			for _, name := range names {
				entry := aliases[name]
				fmt.Printf("%s  %s %s\n",
					CmdStyle.Render(name),
					entry.Reference.Target,
					SubtitleStyle.Render("("+string(entry.Executor)+")"),
				)
			}
			return nil
		},
	}

	aliasDeleteCmd = &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a recorded alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := alias.NewStore(cfg.RootDir).Delete(args[0]); err != nil {
				return err
			}
			fmt.Println(SuccessStyle.Render("✓ ") + "deleted alias " + CmdStyle.Render(args[0]))
			return nil
		},
	}
)

func init() {
	aliasCmd.AddCommand(aliasListCmd)
	aliasCmd.AddCommand(aliasDeleteCmd)
}

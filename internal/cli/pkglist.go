package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/danieljhkim/osdeploy/internal/config"
	"github.com/danieljhkim/osdeploy/internal/engine"
)

func newPkglistCmd() *cobra.Command {
	var repos bool

	cmd := &cobra.Command{
		Use:   "pkglist <file>...",
		Short: "Resolve package lists",
		Long: `Resolve one or more package lists, following #INCLUDE directives, and
print the packages in the order they would be installed. With --repos the
repository directories are printed as well, taken from the directory part of
"dir/package" lines.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.Defaults()
			container, err := buildContainer(&opts, newLogger(cmd.ErrOrStderr(), verbosity))
			if err != nil {
				return err
			}

			var res *engine.PackagesResult
			err = container.Invoke(func(eng *engine.Engine) error {
				var err error
				res, err = eng.ResolvePackages(&engine.PackagesRequest{
					Paths:        args,
					CollectRepos: repos,
				})
				return err
			})
			if err != nil {
				return dig.RootCause(err)
			}

			w := cmd.OutOrStdout()
			if structuredOutput() {
				return outputStructured(w, res)
			}

			PrintSection(w, "Packages ("+PrintCount(len(res.Packages), "package", "packages")+")")
			if len(res.Packages) == 0 {
				PrintEmptyState(w, "No packages")
			}
			PrintList(w, res.Packages, 1)

			if repos {
				PrintSection(w, "Repositories")
				if len(res.Repos) == 0 {
					PrintEmptyState(w, "No repository directories")
				}
				PrintList(w, res.Repos, 1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repos, "repos", false, "Also list repository directories")

	return cmd
}

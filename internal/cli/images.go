package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/danieljhkim/osdeploy/internal/engine"
)

func newImagesCmd() *cobra.Command {
	var img imageFlags

	cmd := &cobra.Command{
		Use:   "images [pattern]",
		Short: "List the osimages of an inventory",
		Long: `List the osimages defined in --osimage-src or --osimage-dir, in document
order. The first one is deployed when no --name is given.

An optional glob pattern, e.g. 'rhels7*', limits the listing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd, &img, nil)
			if err != nil {
				return err
			}

			container, err := buildContainer(opts, newLogger(cmd.ErrOrStderr(), verbosity))
			if err != nil {
				return err
			}

			req := &engine.ImagesRequest{
				Source: opts.OSImageSrc,
				Dir:    opts.OSImageDir,
			}
			if len(args) == 1 {
				req.Pattern = args[0]
			}

			var res *engine.ImagesResult
			err = container.Invoke(func(eng *engine.Engine) error {
				var err error
				res, err = eng.Images(req)
				return err
			})
			if err != nil {
				return dig.RootCause(err)
			}

			w := cmd.OutOrStdout()
			if structuredOutput() {
				return outputStructured(w, res)
			}

			PrintSection(w, "Images")
			if len(res.Images) == 0 {
				PrintEmptyState(w, "No osimages found")
				return nil
			}

			rows := make([][]string, 0, len(res.Images))
			for _, info := range res.Images {
				def := ""
				if info.Default {
					def = "*"
				}
				rows = append(rows, []string{info.Name, info.Distro, info.Arch, def})
			}
			PrintTable(w, []string{"NAME", "OSDISTRO", "ARCH", "DEFAULT"}, rows)
			return nil
		},
	}

	img.register(cmd)

	return cmd
}

package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/storage"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		out    string
		upload bool
		label  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every dimension, fact table and BI view to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("out") {
				out = a.cfg.Export.Dir
			}
			if label == "" {
				label = time.Now().UTC().Format("20060102T150405Z")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.SetComponent(ctx, "export")

			var store storage.ObjectStorage
			if upload {
				var err error
				if store, err = a.objectStorage(ctx); err != nil {
					return err
				}
			}

			gw, closeDB, err := a.openGateway(a.cfg.Database)
			if err != nil {
				return err
			}
			defer closeDB()

			m, err := a.exportTo(ctx, gw, store, out, label)
			if err != nil {
				return err
			}
			return a.printManifest(m)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output directory (default export.dir)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the files to object storage")
	cmd.Flags().StringVar(&label, "label", "", "Object key folder for --upload (default UTC timestamp)")

	return cmd
}

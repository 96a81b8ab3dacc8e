package cli

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/registry"
	"github.com/timmy/transitdw/internal/repository"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		start    string
		end      string
		skipSeed bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and BI views, then seed the dimensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("start") {
				start = a.cfg.Generator.StartDate
			}
			if !cmd.Flags().Changed("end") {
				end = a.cfg.Generator.EndDate
			}
			from, to, err := config.ParseRange(start, end)
			if err != nil {
				return err
			}
			ctx := logger.SetComponent(cmd.Context(), "migrate")

			dbCfg := a.cfg.Database
			dbCfg.AutoMigrate = false
			gw, closeDB, err := a.openGateway(dbCfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repository.Migrate(gw.DB(), dbCfg.Driver); err != nil {
				return err
			}
			logger.CtxInfo(ctx, "Schema and views migrated (driver=%s)", dbCfg.Driver)
			if skipSeed {
				return nil
			}

			reg, err := registry.New(registry.Options{
				Start:    from,
				End:      to,
				Stations: a.cfg.Generator.Stations,
				Seed:     a.cfg.Generator.Seed,
			})
			if err != nil {
				return err
			}
			seeded, err := repository.NewDimensionRepository(gw).Seed(ctx, reg)
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(a.stdout, seeded)
			}
			tables := make([]string, 0, len(seeded))
			for t := range seeded {
				tables = append(tables, t)
			}
			sort.Strings(tables)
			rows := make([][]string, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, []string{t, strconv.FormatInt(seeded[t], 10)})
			}
			return printTable(a.stdout, []string{"table", "inserted"}, rows)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First day of dim_date (default generator.start_date)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of dim_date (default generator.end_date)")
	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Only migrate the schema")

	return cmd
}

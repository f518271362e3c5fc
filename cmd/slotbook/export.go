package main

import (
	"fmt"
	"path/filepath"
	"time"

	"slotbook/internal/models"
	"slotbook/internal/report"

	"github.com/spf13/cobra"
)

func newExportCmd(configPath *string) *cobra.Command {
	var (
		businessID int64
		from       string
		to         string
		out        string
	)

	c := &cobra.Command{
		Use:   "export",
		Short: "Export reservations of a business to an XLSX file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.loadCatalog(); err != nil {
				return err
			}

			today := models.DateOf(time.Now().In(cfg.Location()))
			req := report.Request{
				Actor:      models.SystemActor,
				BusinessID: businessID,
				From:       today.AddDate(0, -1, 0),
				To:         today,
			}
			if from != "" {
				if req.From, err = models.ParseDate(from); err != nil {
					return fmt.Errorf("invalid --from (want YYYY-MM-DD)")
				}
			}
			if to != "" {
				if req.To, err = models.ParseDate(to); err != nil {
					return fmt.Errorf("invalid --to (want YYYY-MM-DD)")
				}
			}
			if out == "" {
				out = filepath.Join("exports", fmt.Sprintf("reservations_%d_%s_%s.xlsx",
					businessID, models.FormatDate(req.From), models.FormatDate(req.To)))
			}

			exporter := report.NewExporter(a.booking, a.directory, &logger)
			n, err := exporter.ExportToFile(cmd.Context(), req, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d reservations to %s\n", n, out)
			return nil
		},
	}

	c.Flags().Int64Var(&businessID, "business", 0, "business id")
	c.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (default one month ago)")
	c.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (default today)")
	c.Flags().StringVarP(&out, "out", "o", "", "output file")
	_ = c.MarkFlagRequired("business")
	return c
}

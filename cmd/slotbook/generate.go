package main

import (
	"fmt"
	"time"

	"slotbook/internal/models"
	"slotbook/internal/schedule"

	"github.com/spf13/cobra"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		businessID int64
		menuID     int64
		from       string
		days       int
		interval   int
		capacity   int
	)

	c := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots from operating hours for a range of days",
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

			start := models.DateOf(time.Now().In(cfg.Location()))
			if from != "" {
				if start, err = models.ParseDate(from); err != nil {
					return fmt.Errorf("invalid --from (want YYYY-MM-DD)")
				}
			}
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			req := schedule.GenerateRequest{
				BusinessID:      businessID,
				MenuID:          menuID,
				IntervalMinutes: interval,
				Capacity:        capacity,
			}
			for i := 0; i < days; i++ {
				req.Days = append(req.Days, models.DailySchedule{Date: start.AddDate(0, 0, i)})
			}

			created, err := a.schedule.GenerateSlots(cmd.Context(), models.SystemActor, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d slots\n", len(created))
			return nil
		},
	}

	c.Flags().Int64Var(&businessID, "business", 0, "business id")
	c.Flags().Int64Var(&menuID, "menu", 0, "menu id")
	c.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (default today)")
	c.Flags().IntVar(&days, "days", 7, "number of days")
	c.Flags().IntVar(&interval, "interval", 0, "slot length in minutes (default menu duration)")
	c.Flags().IntVar(&capacity, "capacity", 0, "seats per slot (default menu capacity)")
	_ = c.MarkFlagRequired("business")
	_ = c.MarkFlagRequired("menu")
	return c
}

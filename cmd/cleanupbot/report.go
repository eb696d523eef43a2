package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"cleanup-quest-bot/internal/service"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity and schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				h, err := a.pool.HealthCheck(ctx)
				if err != nil {
					return err
				}

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Check", "Value"})
				tw.AppendRow(table.Row{"Ping latency", h.Latency.Round(time.Microsecond)})
				tw.AppendRow(table.Row{"Connections", fmt.Sprintf("%d (%d idle)", h.TotalConns, h.IdleConns)})
				missing := "none"
				if !h.Ready() {
					missing = strings.Join(h.MissingTables, ", ")
				}
				tw.AppendRow(table.Row{"Missing tables", missing})
				tw.Render()

				if !h.Ready() {
					return fmt.Errorf("schema not migrated, run cleanupbot migrate")
				}
				return nil
			})
		},
	}
}

func leaderboardCmd() *cobra.Command {
	var (
		limit  int
		weekly bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the points leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				ranking := service.NewRankingService(a.store, a.settings)

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)

				if weekly {
					leaders, err := ranking.GetWeeklyLeaders(ctx, limit)
					if err != nil {
						return err
					}
					tw.AppendHeader(table.Row{"#", "User", "Username", "Points this week"})
					for i, l := range leaders {
						tw.AppendRow(table.Row{i + 1, l.UserID, l.Username, l.Points})
					}
					tw.Render()
					return nil
				}

				top, err := ranking.GetTopUsers(ctx, limit)
				if err != nil {
					return err
				}
				tw.AppendHeader(table.Row{"#", "User", "Username", "Points", "Level", "Streak", "Cleaned"})
				for i, p := range top {
					tw.AppendRow(table.Row{i + 1, p.UserID, p.Username, p.Points, p.Level, p.Streak, p.Stats.TicketsCleaned})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of users")
	cmd.Flags().BoolVar(&weekly, "weekly", false, "rank by points earned since Monday")
	return cmd
}

func ticketsCmd() *cobra.Command {
	tickets := &cobra.Command{Use: "tickets", Short: "Inspect tickets"}
	tickets.AddCommand(ticketsOpenCmd())
	tickets.AddCommand(ticketsShowCmd())
	return tickets
}

func ticketsOpenCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "open",
		Short: "List reported tickets waiting for a volunteer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				svc := service.NewTicketService(a.store, nil, a.settings)
				open, err := svc.ListOpen(ctx, limit)
				if err != nil {
					return err
				}

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Priority", "Size", "Reporter", "Reported at"})
				for _, t := range open {
					tw.AppendRow(table.Row{t.ID, t.Type, t.Priority, t.EstimatedSize, t.ReportedBy, t.CreatedAt.Format("2006-01-02 15:04")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of tickets")
	return cmd
}

func ticketsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a ticket and its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				svc := service.NewTicketService(a.store, nil, a.settings)
				t, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				events, err := svc.History(ctx, t.ID)
				if err != nil {
					return err
				}

				fmt.Printf("%s  %s  %s/%s/%s  reporter=%d\n", t.ID, t.Status, t.Type, t.Priority, t.EstimatedSize, t.ReportedBy)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "From", "To", "Actor", "Message"})
				for _, e := range events {
					msg := ""
					if e.Message != nil {
						msg = *e.Message
					}
					tw.AppendRow(table.Row{e.CreatedAt.Format("2006-01-02 15:04"), e.FromStatus, e.ToStatus, e.ActorID, msg})
				}
				tw.Render()
				return nil
			})
		},
	}
}

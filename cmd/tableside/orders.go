package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tableside/internal/app"
	"tableside/internal/domain"
	"tableside/internal/ledger"
	"tableside/internal/session"
	"tableside/internal/stream"
	tablesidesdk "tableside/sdk/go"
)

func ordersCmd() *cobra.Command {
	o := &cobra.Command{
		Use:   "orders",
		Short: "Orders on a running server",
		Long:  "Inspect and drive the orders of a running 'tableside serve'. Set --server and --token (or TABLESIDE_SERVER, TABLESIDE_TOKEN).",
	}
	o.AddCommand(ordersListCmd())
	o.AddCommand(ordersQueueCmd())
	o.AddCommand(ordersStatusCmd())
	o.AddCommand(ordersClearCmd())
	return o
}

func ordersListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := remoteClient().ListOrders(cmd.Context(), strings.ToUpper(status))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(page)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Table", "Status", "Priority", "Items", "Total", "Placed"})
			for _, o := range page.Items {
				tw.AppendRow(table.Row{o.ID, o.Table, o.Status, priority(o.Priority), itemCount(o.Items), o.Total, since(o.CreatedAt)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only orders in this status")
	return cmd
}

func ordersQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the kitchen preparation queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := remoteClient().GetQueue(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"#", "Order", "Table", "Items", "Preparing"})
			for _, e := range entries {
				tw.AppendRow(table.Row{e.Position, e.Order.ID, e.Order.Table, itemCount(e.Order.Items), e.Waiting})
			}
			tw.Render()
			return nil
		},
	}
}

func ordersStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Set an order's status (PLACED, PREPARING, READY, SERVED, PAID, CANCELLED)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := remoteClient().UpdateStatus(cmd.Context(), args[0], strings.ToUpper(args[1]))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(o)
			}
			fmt.Printf("Order %s is %s", o.ID, o.Status)
			if o.Priority != nil {
				fmt.Printf(" (queue position %d)", *o.Priority)
			}
			fmt.Println()
			return nil
		},
	}
}

func ordersClearCmd() *cobra.Command {
	var archive bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every order and empty the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearOrders(cmd.Context(), archive)
		},
	}
	cmd.Flags().BoolVar(&archive, "archive", false, "archive the shift before clearing")
	return cmd
}

func shiftCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "shift",
		Short: "Shift lifecycle",
	}
	s.AddCommand(&cobra.Command{
		Use:   "close",
		Short: "Archive every order of the shift and start the next one empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearOrders(cmd.Context(), true)
		},
	})
	return s
}

func clearOrders(ctx context.Context, archive bool) error {
	res, err := remoteClient().ClearOrders(ctx, archive)
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(res)
	}
	fmt.Printf("Cleared %d orders\n", res.Cleared)
	for _, loc := range res.Archived {
		fmt.Printf("Archived to %s\n", loc)
	}
	return nil
}

func kitchenCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "kitchen",
		Short: "Kitchen display",
	}
	k.AddCommand(kitchenWatchCmd())
	return k
}

func kitchenWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the preparation queue of a running server",
		Long: `Poll the server's order list into a local ledger and redraw the queue after each
refresh. Queue positions are derived locally, first come first served.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()
			orders := session.NewOrders(ledger.New(), nil, log)
			poller := stream.Poller{
				Source:   app.RemoteOrders{Client: remoteClient()},
				Sink:     orders,
				Interval: interval,
				Log:      log,
				OnRefresh: func() {
					renderQueue(orders.Snapshot(), time.Now())
				},
			}
			return poller.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 3*time.Second, "refresh interval")
	return cmd
}

func renderQueue(snap ledger.Snapshot, now time.Time) {
	if !viper.GetBool("json") {
		fmt.Print("\033[H\033[2J")
	}
	type row struct {
		Position int    `json:"position"`
		OrderID  string `json:"order_id"`
		Table    string `json:"table"`
		Items    int    `json:"items"`
		Since    string `json:"since"`
	}
	rows := make([]row, 0, len(snap.Queue))
	for i, id := range snap.Queue {
		o, ok := snap.Order(id)
		if !ok {
			continue
		}
		r := row{Position: i + 1, OrderID: o.ID, Table: o.Table}
		for _, it := range o.Items {
			r.Items += it.Quantity
		}
		if t, ok := o.StatusTimes[domain.StatusPreparing]; ok {
			r.Since = humanize.RelTime(t, now, "ago", "from now")
		}
		rows = append(rows, r)
	}
	if viper.GetBool("json") {
		_ = printJSON(rows)
		return
	}
	tw := newTable()
	tw.SetTitle(fmt.Sprintf("Kitchen queue, %s", now.Format("15:04:05")))
	tw.AppendHeader(table.Row{"#", "Order", "Table", "Items", "Preparing"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.Position, r.OrderID, r.Table, r.Items, r.Since})
	}
	if len(rows) == 0 {
		fmt.Println("Nothing preparing.")
		return
	}
	tw.Render()
}

func priority(p *int) string {
	if p == nil {
		return ""
	}
	return fmt.Sprint(*p)
}

func itemCount(items []tablesidesdk.OrderItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func since(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return humanize.Time(*t)
}

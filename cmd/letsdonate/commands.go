package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/app"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/db"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	syncpkg "github.com/akilamadhufin/lets-donate-mobile-app/internal/sync"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var cartUser string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload queued changes and download donations now",
		Long: `Run one full sync pass: replay the sync queue against the server in
the order the changes were made, download the donation list and purge
confirmed queue entries. Nothing happens when the server is unreachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := a.TriggerSync(ctx)
				if err != nil {
					return err
				}
				if cartUser != "" && result.Skipped == "" {
					if err := a.Engine().SyncCart(ctx, cartUser); err != nil {
						return err
					}
				}
				return printSyncResult(cmd.OutOrStdout(), opts.jsonOut, result)
			})
		},
	}
	cmd.Flags().StringVar(&cartUser, "cart", "", "also reconcile the cart of this user id")
	return cmd
}

func printSyncResult(w io.Writer, asJSON bool, r *syncpkg.SyncResult) error {
	if asJSON {
		return printJSON(w, r)
	}
	if r.Skipped != "" {
		_, err := fmt.Fprintf(w, "Sync skipped: %s\n", r.Skipped)
		return err
	}
	_, err := fmt.Fprintf(w, "Uploaded %d (%d failed), downloaded %d, kept %d local, purged %d in %s\n",
		r.Uploaded, r.UploadFailed, r.Downloaded, r.Conflicts, r.Purged, r.Duration.Round(time.Millisecond))
	return err
}

func newQueueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage changes waiting for the server",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List sync queue entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Store().ListSyncItems(ctx, models.QueueStatus(status))
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), items)
				}
				return printQueue(cmd.OutOrStdout(), items)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "only entries with this status: pending, failed, completed")

	retry := &cobra.Command{
		Use:   "retry",
		Short: "Give failed entries a fresh retry budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Store().ResetFailedSyncItems(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed entries\n", n)
				return nil
			})
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Store().ClearSyncQueue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d completed entries\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(list, retry, purge)
	return cmd
}

func printQueue(w io.Writer, items []*models.SyncQueueEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOPERATION\tENTITY\tENTITY ID\tSTATUS\tRETRIES\tCREATED\tERROR")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			it.ID, it.Operation, it.EntityType, it.EntityID, it.Status, it.Retries,
			it.CreatedAtTime().Format(time.RFC3339), it.Error)
	}
	return tw.Flush()
}

func newDonationsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "donations",
		Short: "Browse cached donations",
	}

	var (
		q       db.DonationQuery
		sort    string
		refresh bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List donations from the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := db.ParseSortOrder(sort)
			if err != nil {
				return err
			}
			q.Sort = order
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var donations []*models.Donation
				if refresh {
					donations, err = a.Engine().SearchDonations(ctx, q)
				} else {
					donations, err = a.Store().SearchDonations(ctx, q)
				}
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), donations)
				}
				return printDonations(cmd.OutOrStdout(), donations)
			})
		},
	}
	f := list.Flags()
	f.StringVar(&q.Text, "search", "", "match title, description or category")
	f.StringVar(&q.Category, "category", "", "only this category")
	f.BoolVar(&q.AvailableOnly, "available", false, "only donations nobody booked")
	f.StringVar(&q.UserID, "owner", "", "only donations of this user id")
	f.StringVar(&sort, "sort", "newest", "newest, oldest, title_asc or title_desc")
	f.BoolVar(&refresh, "refresh", false, "download the list from the server first")

	cmd.AddCommand(list)
	return cmd
}

func newCartCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart USER_ID",
		Short: "Show a user's cart, refreshed from the server when reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine().GetCart(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), items)
				}
				donations := make([]*models.Donation, 0, len(items))
				for _, it := range items {
					donations = append(donations, it.Item)
				}
				return printDonations(cmd.OutOrStdout(), donations)
			})
		},
	}

	book := &cobra.Command{
		Use:   "book USER_ID ITEM_ID",
		Short: "Book a donation, queuing the request when offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine().BookItem(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printWriteResult(cmd.OutOrStdout(), opts.jsonOut, "Booked", res)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove USER_ID ITEM_ID",
		Short: "Release a booking, queuing the request when offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine().RemoveFromCart(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printWriteResult(cmd.OutOrStdout(), opts.jsonOut, "Removed", res)
			})
		},
	}

	cmd.AddCommand(book, remove)
	return cmd
}

func printWriteResult(w io.Writer, asJSON bool, action string, res models.WriteResult) error {
	if asJSON {
		return printJSON(w, res)
	}
	if res.Offline {
		_, err := fmt.Fprintf(w, "%s locally, queued for the server\n", action)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n", action)
	return err
}

func printDonations(w io.Writer, donations []*models.Donation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tCITY\tAVAILABLE\tSYNCED")
	for _, d := range donations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n",
			d.ServerID, d.Title, d.Category, d.City, d.Available, d.Synced)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

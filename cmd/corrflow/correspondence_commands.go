package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"corrflow/internal/api"
	"corrflow/internal/correspondence"
	"corrflow/internal/lifecycle"
	"corrflow/internal/services"
	"corrflow/internal/store"
	"corrflow/internal/workflow"
)

// Commands in this file act as the operator by default and see every
// correspondence. --as <user-id> applies that user's visibility rules.

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		asUser   int64
		status   string
		priority string
		search   string
		archived bool
		page     int
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List correspondences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b *backend) error {
				var archivedFilter *bool
				if cmd.Flags().Changed("archived") {
					archivedFilter = &archived
				}
				var (
					rows []*store.Correspondence
					pg   store.Page
					err  error
				)
				if asUser > 0 {
					rows, pg, err = b.corr.List(cmd.Context(), asUser, correspondence.Filter{
						Status:   status,
						Priority: priority,
						Search:   search,
						Archived: archivedFilter,
						Page:     page,
						Limit:    limit,
					})
				} else {
					var filter store.ListFilter
					filter, err = operatorFilter(status, priority)
					if err == nil {
						filter.Search = search
						filter.Archived = archivedFilter
						filter.Page = page
						filter.Limit = limit
						rows, pg, err = b.store.ListCorrespondences(cmd.Context(), filter)
					}
				}
				if err != nil {
					return err
				}

				list := api.FromCorrespondences(rows, pg)
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list.Items) == 0 {
					fmt.Fprintln(out, "No correspondences")
					return nil
				}
				tableRows := make([][]string, 0, len(list.Items))
				for _, item := range list.Items {
					tableRows = append(tableRows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Number,
						item.Subject,
						item.Status,
						item.Priority,
						item.SenderName,
						item.HandlerName,
						dateOnly(item.Date),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Number", "Subject", "Status", "Priority", "Sender", "Handler", "Date"},
					tableRows,
					0,
				))
				fmt.Fprintf(out, "Page %d of %d (%d total)\n", list.Pagination.Page, list.Pagination.Pages, list.Pagination.Total)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&asUser, "as", 0, "Act as this user id (applies visibility rules)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (draft, pending, approved, rejected, archived)")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority (normal, important, urgent)")
	cmd.Flags().StringVar(&search, "search", "", "Match number, subject, or content")
	cmd.Flags().BoolVar(&archived, "archived", false, "Only archived (true) or only active (false) rows")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows per page")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asUser int64

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a correspondence with its chain, signatures, attachments and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveID(args[0], "correspondence id")
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b *backend) error {
				var detail *correspondence.Detail
				if asUser > 0 {
					detail, err = b.corr.Get(cmd.Context(), asUser, id)
				} else {
					detail, err = operatorDetail(cmd.Context(), b.store, id)
				}
				if err != nil {
					return err
				}
				view := api.FromDetail(detail)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				renderDetail(cmd, view)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&asUser, "as", 0, "Act as this user id (applies visibility rules)")
	return cmd
}

func newStagesCommand(ctx *commandContext) *cobra.Command {
	var asUser int64

	cmd := &cobra.Command{
		Use:   "stages <id>",
		Short: "Show the approval chain of a correspondence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveID(args[0], "correspondence id")
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b *backend) error {
				var stages []*store.Stage
				if asUser > 0 {
					stages, err = b.corr.Stages(cmd.Context(), asUser, id)
				} else {
					var corr *store.Correspondence
					if corr, err = b.store.GetCorrespondence(cmd.Context(), id); err == nil && corr == nil {
						err = notFound(id)
					}
					if err == nil {
						stages, err = b.store.Stages(cmd.Context(), id)
					}
				}
				if err != nil {
					return err
				}
				view := api.FromStages(stages)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStages(out, view))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&asUser, "as", 0, "Act as this user id (applies visibility rules)")
	return cmd
}

func newSignCommand(ctx *commandContext) *cobra.Command {
	var (
		asUser   int64
		decision string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "sign <id>",
		Short: "Record a decision on the pending stage assigned to --as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveID(args[0], "correspondence id")
			if err != nil {
				return err
			}
			if asUser <= 0 {
				return fmt.Errorf("--as is required")
			}
			if strings.TrimSpace(decision) == "" {
				return fmt.Errorf("--decision is required")
			}
			return ctx.withBackend(func(b *backend) error {
				result, err := b.engine.Sign(cmd.Context(), workflow.SignRequest{
					CorrespondenceID: id,
					UserID:           asUser,
					Decision:         decision,
					Notes:            notes,
				})
				if err != nil {
					return err
				}
				view := api.FromSignResult(result)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recorded %s on stage %q of correspondence %d\n", view.Decision, view.StageName, view.CorrespondenceID)
				fmt.Fprintf(out, "Status: %s\n", view.Status)
				if view.Terminal {
					fmt.Fprintln(out, "Workflow finished")
				} else if view.NextHandler > 0 {
					fmt.Fprintf(out, "Next handler: user %d\n", view.NextHandler)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&asUser, "as", 0, "Signing user id")
	cmd.Flags().StringVar(&decision, "decision", "", "Decision label (a rejection label rejects, anything else approves)")
	cmd.Flags().StringVar(&notes, "notes", "", "Optional notes stored on the stage")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var asUser int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show correspondence statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b *backend) error {
				var (
					stats store.Statistics
					err   error
				)
				if asUser > 0 {
					stats, err = b.corr.Statistics(cmd.Context(), asUser)
				} else {
					stats, err = b.store.Statistics(cmd.Context(), 0)
				}
				if err != nil {
					return err
				}
				view := api.FromStatistics(stats)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				renderStatistics(cmd, view)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&asUser, "as", 0, "Count pending stages for this user id")
	return cmd
}

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	var (
		userID  int64
		readID  int64
		readAll bool
	)

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List or acknowledge a user's notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			return ctx.withBackend(func(b *backend) error {
				out := cmd.OutOrStdout()
				switch {
				case readAll:
					updated, err := b.inbox.MarkAllRead(cmd.Context(), userID)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, api.CountResponse{Updated: updated})
					}
					fmt.Fprintf(out, "Marked %d notification(s) read\n", updated)
					return nil
				case readID > 0:
					if err := b.inbox.MarkRead(cmd.Context(), userID, readID); err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, api.IDResponse{ID: readID})
					}
					fmt.Fprintf(out, "Notification %d marked read\n", readID)
					return nil
				}

				items, unread, err := b.inbox.List(cmd.Context(), userID)
				if err != nil {
					return err
				}
				view := api.FromNotifications(items, unread)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				if len(view.Items) == 0 {
					fmt.Fprintln(out, "No notifications")
					return nil
				}
				rows := make([][]string, 0, len(view.Items))
				for _, n := range view.Items {
					rows = append(rows, []string{
						strconv.FormatInt(n.ID, 10),
						n.Type,
						n.Title,
						relatedLabel(n),
						yesNo(n.Read),
						n.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Type", "Title", "Related", "Read", "Created"},
					rows,
					0,
				))
				fmt.Fprintf(out, "%d unread\n", view.Unread)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Recipient user id")
	cmd.Flags().Int64Var(&readID, "read", 0, "Mark this notification id read")
	cmd.Flags().BoolVar(&readAll, "read-all", false, "Mark every notification read")
	return cmd
}

func operatorFilter(status, priority string) (store.ListFilter, error) {
	var filter store.ListFilter
	if s := strings.TrimSpace(status); s != "" {
		parsed, ok := lifecycle.ParseStatus(s)
		if !ok {
			return filter, fmt.Errorf("unknown status %q", status)
		}
		filter.Status = parsed
	}
	if p := strings.TrimSpace(priority); p != "" {
		parsed, ok := lifecycle.ParsePriority(p)
		if !ok {
			return filter, fmt.Errorf("unknown priority %q", priority)
		}
		filter.Priority = parsed
	}
	return filter, nil
}

func operatorDetail(ctx context.Context, st *store.Store, id int64) (*correspondence.Detail, error) {
	corr, err := st.GetCorrespondence(ctx, id)
	if err != nil {
		return nil, err
	}
	if corr == nil {
		return nil, notFound(id)
	}
	d := &correspondence.Detail{Correspondence: corr}
	if d.Stages, err = st.Stages(ctx, id); err != nil {
		return nil, err
	}
	if d.Signatures, err = st.Signatures(ctx, id); err != nil {
		return nil, err
	}
	if d.Attachments, err = st.Attachments(ctx, id); err != nil {
		return nil, err
	}
	if d.Comments, err = st.Comments(ctx, id); err != nil {
		return nil, err
	}
	if d.CC, err = st.CCRecipients(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

func notFound(id int64) error {
	return services.Wrap(services.ErrNotFound, "cli", "load", fmt.Sprintf("correspondence %d not found", id), nil)
}

func relatedLabel(n api.Notification) string {
	if n.RelatedID == 0 {
		return ""
	}
	if n.RelatedType == "" {
		return strconv.FormatInt(n.RelatedID, 10)
	}
	return n.RelatedType + " " + strconv.FormatInt(n.RelatedID, 10)
}

func dateOnly(value string) string {
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}

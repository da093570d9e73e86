package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"corrflow/internal/api"
)

func renderDetail(cmd *cobra.Command, d api.CorrespondenceDetail) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", d.Number, d.Subject)
	fmt.Fprintf(out, "Status:    %s (%s)\n", d.Status, d.Priority)
	fmt.Fprintf(out, "Type:      %s\n", d.Type)
	fmt.Fprintf(out, "Sender:    %s\n", person(d.SenderName, d.SenderID))
	if d.ReceiverID > 0 {
		fmt.Fprintf(out, "Receiver:  %s\n", person(d.ReceiverName, d.ReceiverID))
	}
	if d.CurrentHandlerID > 0 {
		fmt.Fprintf(out, "Handler:   %s\n", person(d.HandlerName, d.CurrentHandlerID))
	}
	fmt.Fprintf(out, "Date:      %s\n", d.Date)
	if d.DueDate != "" {
		fmt.Fprintf(out, "Due:       %s\n", d.DueDate)
	}
	if d.Archived {
		fmt.Fprintf(out, "Archived:  %s\n", d.ArchivedAt)
	}
	if strings.TrimSpace(d.Content) != "" {
		fmt.Fprintf(out, "\n%s\n", d.Content)
	}

	if len(d.Stages) > 0 {
		fmt.Fprintln(out, "\nWorkflow")
		fmt.Fprintln(out, renderStages(out, d.Stages))
	}
	if len(d.Signatures) > 0 {
		rows := make([][]string, 0, len(d.Signatures))
		for _, s := range d.Signatures {
			rows = append(rows, []string{person(s.SignerName, s.UserID), s.RoleName, s.Decision, s.SignedAt})
		}
		fmt.Fprintln(out, "\nSignatures")
		fmt.Fprintln(out, renderTable(out, []string{"Signer", "Role", "Decision", "Signed"}, rows))
	}
	if len(d.Attachments) > 0 {
		rows := make([][]string, 0, len(d.Attachments))
		for _, a := range d.Attachments {
			rows = append(rows, []string{a.FileName, strconv.FormatInt(a.FileSize, 10), a.FileType, a.UploadedAt})
		}
		fmt.Fprintln(out, "\nAttachments")
		fmt.Fprintln(out, renderTable(out, []string{"File", "Bytes", "Type", "Uploaded"}, rows, 1))
	}
	if len(d.CC) > 0 {
		names := make([]string, 0, len(d.CC))
		for _, cc := range d.CC {
			names = append(names, fmt.Sprintf("%s %s", cc.Type, person(cc.Name, cc.RecipientID)))
		}
		fmt.Fprintf(out, "\nCC: %s\n", strings.Join(names, ", "))
	}
	if len(d.Comments) > 0 {
		fmt.Fprintln(out, "\nComments")
		for _, c := range d.Comments {
			fmt.Fprintf(out, "  [%s] %s: %s\n", c.CreatedAt, person(c.AuthorName, c.UserID), c.Text)
		}
	}
}

func renderStages(out io.Writer, stages []api.Stage) string {
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, []string{
			strconv.Itoa(s.Order),
			s.Name,
			person(s.AssigneeName, s.AssignedTo),
			s.Status,
			s.Decision,
			yesNo(s.RequiresSignature),
			s.CompletedAt,
		})
	}
	return renderTable(out,
		[]string{"#", "Stage", "Assignee", "Status", "Decision", "Signature", "Completed"},
		rows,
		0,
	)
}

func renderStatistics(cmd *cobra.Command, s api.Statistics) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"total", strconv.Itoa(s.Total)},
		{"today", strconv.Itoa(s.Today)},
		{"this month", strconv.Itoa(s.ThisMonth)},
		{"overdue", strconv.Itoa(s.Overdue)},
		{"pending for me", strconv.Itoa(s.PendingMine)},
	}
	rows = append(rows, countRows("status: ", s.ByStatus)...)
	rows = append(rows, countRows("priority: ", s.ByPriority)...)
	fmt.Fprintln(out, renderTable(out, []string{"Metric", "Count"}, rows, 1))

	if len(s.TopSenders) > 0 {
		senders := make([][]string, 0, len(s.TopSenders))
		for _, sc := range s.TopSenders {
			senders = append(senders, []string{person(sc.FullName, sc.UserID), strconv.Itoa(sc.Count)})
		}
		fmt.Fprintln(out, "\nTop senders")
		fmt.Fprintln(out, renderTable(out, []string{"Sender", "Count"}, senders, 1))
	}
}

func countRows(prefix string, counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{prefix + k, strconv.Itoa(counts[k])})
	}
	return rows
}

func person(name string, id int64) string {
	if strings.TrimSpace(name) == "" {
		return "#" + strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s (#%d)", name, id)
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"corrflow/internal/audit"
)

func newOrgCommand(ctx *commandContext) *cobra.Command {
	orgCmd := &cobra.Command{
		Use:   "org",
		Short: "Manage the organization directory",
	}
	orgCmd.AddCommand(newOrgImportCommand(ctx))
	orgCmd.AddCommand(newOrgSetManagerCommand(ctx))
	return orgCmd
}

func newOrgImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Load roles, units, users and signatures from a YAML seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open seed: %w", err)
			}
			defer file.Close()

			return ctx.withBackend(func(b *backend) error {
				summary, err := b.directory.ImportSeed(cmd.Context(), file)
				if err != nil {
					return err
				}
				if err := b.engine.Recorder().Record(cmd.Context(), audit.Entry{
					Action:     audit.ActionImport,
					EntityType: audit.EntityOrganization,
					Details: map[string]any{
						"source":      path,
						"roles":       summary.Roles,
						"departments": summary.Departments,
						"divisions":   summary.Divisions,
						"schools":     summary.Schools,
						"users":       summary.Users,
						"signatures":  summary.Signatures,
					},
				}); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %s\n", path)
				fmt.Fprintln(out, renderTable(out,
					[]string{"Entity", "Rows"},
					[][]string{
						{"roles", strconv.Itoa(summary.Roles)},
						{"departments", strconv.Itoa(summary.Departments)},
						{"divisions", strconv.Itoa(summary.Divisions)},
						{"schools", strconv.Itoa(summary.Schools)},
						{"users", strconv.Itoa(summary.Users)},
						{"signatures", strconv.Itoa(summary.Signatures)},
					},
					1,
				))
				return nil
			})
		},
	}
}

func newOrgSetManagerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "set-manager <division|department> <unit-id> <user-id>",
		Short:     "Assign the manager of a division or department",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"division", "department"},
		RunE: func(cmd *cobra.Command, args []string) error {
			unit := strings.ToLower(strings.TrimSpace(args[0]))
			unitID, err := parsePositiveID(args[1], "unit id")
			if err != nil {
				return err
			}
			managerID, err := parsePositiveID(args[2], "user id")
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b *backend) error {
				switch unit {
				case "division":
					err = b.directory.SetDivisionManager(cmd.Context(), unitID, managerID)
				case "department":
					err = b.directory.SetDepartmentManager(cmd.Context(), unitID, managerID)
				default:
					return fmt.Errorf("unknown unit %q (expected division or department)", args[0])
				}
				if err != nil {
					return err
				}
				if err := b.engine.Recorder().Record(cmd.Context(), audit.Entry{
					Action:     audit.ActionUpdate,
					EntityType: audit.EntityOrganization,
					EntityID:   unitID,
					Details:    map[string]any{"unit": unit, "manager_id": managerID},
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d manager set to user %d\n", unit, unitID, managerID)
				return nil
			})
		},
	}
}

func parsePositiveID(raw, label string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", label, raw)
	}
	return id, nil
}

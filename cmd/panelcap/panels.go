package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

const timeLayout = "2006-01-02 15:04:05"

func newListCommand(ctx *cliContext) *cobra.Command {
	var (
		filter db.PanelFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored panels",
		Long: `List stored panel records, newest first.

Examples:
  panelcap list
  panelcap list --vendor BOE --limit 10
  panelcap list --name "lab%"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			panels, err := database.ListPanels(filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if panels == nil {
					panels = []*db.Panel{}
				}
				return writeJSON(out, panels)
			}
			if len(panels) == 0 {
				fmt.Fprintln(out, "No panels found")
				return nil
			}

			rows := make([][]string, 0, len(panels))
			for _, p := range panels {
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10),
					p.ParseID[:8],
					p.Name,
					p.Vendor,
					p.PartNumber,
					p.Resolution,
					p.EdidVersion,
					p.CreatedAt.Local().Format(timeLayout),
				})
			}
			headers := []string{"ID", "Parse ID", "Name", "Vendor", "Part", "Resolution", "EDID", "Created"}
			fmt.Fprintln(out, renderTable(out, headers, rows, []columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Vendor, "vendor", "", "Filter by PNP vendor ID")
	cmd.Flags().StringVar(&filter.Name, "name", "", "Filter by name (SQL LIKE pattern)")
	cmd.Flags().StringVar(&filter.Resolution, "resolution", "", "Filter by resolution, e.g. 1920x1080")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of panels")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Skip this many panels")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

func newShowCommand(ctx *cliContext) *cobra.Command {
	var (
		asJSON  bool
		setOnly bool
	)

	cmd := &cobra.Command{
		Use:   "show <id|parse-id>",
		Short: "Show a stored panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			panel, err := resolvePanel(database, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, panel)
			}

			fmt.Fprintf(out, "Panel #%d: %s\n", panel.ID, panel.Name)
			fmt.Fprintf(out, "Parse ID: %s\n", panel.ParseID)
			fmt.Fprintf(out, "Created:  %s\n", panel.CreatedAt.Local().Format(timeLayout))
			if !panel.UpdatedAt.Equal(panel.CreatedAt) {
				fmt.Fprintf(out, "Updated:  %s\n", panel.UpdatedAt.Local().Format(timeLayout))
			}
			for _, a := range []struct{ label, path string }{
				{"EDID", panel.EDIDPath}, {"VBT", panel.VBTPath}, {"DPCD", panel.DPCDPath},
			} {
				if a.path != "" {
					fmt.Fprintf(out, "%-9s %s\n", a.label+":", a.path)
				}
			}
			if panel.Notes != "" {
				fmt.Fprintf(out, "Notes:    %s\n", panel.Notes)
			}
			fmt.Fprintln(out)

			return printInfo(out, &panel.Info.Info, false, setOnly)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().BoolVar(&setOnly, "set-only", false, "Only print decoded fields")

	return cmd
}

func newCompareCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Show the fields that differ between two stored panels",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			a, err := resolvePanel(database, args[0])
			if err != nil {
				return err
			}
			b, err := resolvePanel(database, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			diffs := panelinfo.Diff(&a.Info.Info, &b.Info.Info)
			if len(diffs) == 0 {
				fmt.Fprintf(out, "Panels #%d and #%d decode identically\n", a.ID, b.ID)
				return nil
			}

			rows := make([][]string, 0, len(diffs))
			for _, d := range diffs {
				rows = append(rows, []string{d.Group, d.Name, d.Left, d.Right})
			}
			headers := []string{"Group", "Field", fmt.Sprintf("#%d %s", a.ID, a.Name), fmt.Sprintf("#%d %s", b.ID, b.Name)}
			fmt.Fprintln(out, renderTable(out, headers, rows, nil))
			fmt.Fprintf(out, "%d field(s) differ\n", len(diffs))
			return nil
		},
	}
}

func newEditCommand(ctx *cliContext) *cobra.Command {
	var (
		name  string
		notes string
		sets  []string
	)

	cmd := &cobra.Command{
		Use:   "edit <id|parse-id>",
		Short: "Rename, annotate or correct a stored panel",
		Long: `Rename, annotate or correct a stored panel.

--set takes field=value using the JSON field names shown by "show". An
empty value clears the field.

Examples:
  panelcap edit 3 --notes "sample from lot 7"
  panelcap edit 3 --set max_brightness_nits=500 --set touch_support=yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("notes") && len(sets) == 0 {
				return fmt.Errorf("nothing to change (use --name, --notes or --set)")
			}

			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			panel, err := resolvePanel(database, args[0])
			if err != nil {
				return err
			}

			if flags.Changed("name") {
				panel.Name = name
			}
			if flags.Changed("notes") {
				panel.Notes = notes
			}
			for _, kv := range sets {
				field, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q (expected field=value)", kv)
				}
				if err := panel.Info.Set(strings.TrimSpace(field), value); err != nil {
					return err
				}
			}

			if err := database.UpdatePanel(panel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated panel #%d\n", panel.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&notes, "notes", "", "Review notes")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a field (field=value, repeatable)")

	return cmd
}

func newDeleteCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|parse-id>",
		Short: "Delete a stored panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			panel, err := resolvePanel(database, args[0])
			if err != nil {
				return err
			}
			if err := database.DeletePanel(panel.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted panel #%d (%s)\n", panel.ID, panel.Name)
			return nil
		},
	}
}

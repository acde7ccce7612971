package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psaab/metconf/pkg/config"
)

func newDumpCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the validated descriptors",
		Args:  argsExactly(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "table", "json", "text":
			default:
				return &ExitError{Code: exitUsage, Message: fmt.Sprintf("unsupported format %q (want table, json or text)", format)}
			}
			cs, err := loadFile(cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cs)
			case "text":
				_, err := io.WriteString(out, cs.Format())
				return err
			}
			dumpTables(out, cs)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json or text")
	return cmd
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// dumpTables writes one table per non-empty kind in declaration order.
func dumpTables(w io.Writer, cs *config.ConfigSet) {
	first := true
	heading := func(title string, n int) {
		if !first {
			fmt.Fprintln(w)
		}
		first = false
		fmt.Fprintf(w, "%s (%d)\n", title, n)
	}

	if n := cs.Len(config.KindDaemon); n > 0 {
		heading("Daemons", n)
		t := newTable(w, []string{"NAME", "COMMAND", "HOST", "FLAVOR"})
		for _, name := range cs.DaemonNames() {
			d, _ := cs.Daemon(name)
			t.Append([]string{d.Name, d.Command, d.Host, d.Flavor.String()})
		}
		t.Render()
	}
	if n := cs.Len(config.KindProcess); n > 0 {
		heading("Processes", n)
		t := newTable(w, []string{"NAME", "COMMAND", "ARGS", "HOST", "DAEMON", "FLAVOR"})
		for _, name := range cs.ProcessNames() {
			p, _ := cs.Process(name)
			t.Append([]string{p.Name, p.Command, joinArgs(p.Args), p.Host, p.Daemon, p.Flavor.String()})
		}
		t.Render()
	}
	if n := cs.Len(config.KindVisi); n > 0 {
		heading("Visis", n)
		t := newTable(w, []string{"NAME", "COMMAND", "ARGS", "HOST"})
		for _, name := range cs.VisiNames() {
			v, _ := cs.Visi(name)
			t.Append([]string{v.Name, v.Command, joinArgs(v.Args), v.Host})
		}
		t.Render()
	}
	if n := cs.Len(config.KindTunable); n > 0 {
		heading("Tunables", n)
		t := newTable(w, []string{"NAME", "VALUE"})
		for _, name := range cs.TunableNames() {
			tv, _ := cs.Tunable(name)
			t.Append([]string{tv.Name, strconv.FormatFloat(tv.Value, 'g', -1, 64)})
		}
		t.Render()
	}
}

func joinArgs(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"") {
			a = strconv.Quote(a)
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

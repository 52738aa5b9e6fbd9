package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/jstrand/preflight/internal/api"
	"github.com/urfave/cli/v2"
)

func stateCmd(c *cli.Context) error {
	client, err := setup(c)
	if err != nil {
		return err
	}

	if err := client.Refresh(c.Context); err != nil {
		return err
	}

	printState(client.State(), os.Stdout)
	return nil
}

func printState(state *api.ClusterState, w io.Writer) {
	tr := tabwriter.NewWriter(w, 6, 6, 4, ' ', 0)

	fmt.Fprintf(tr, "INDEX\tSHARDS\tREPLICAS\tCREATED\n")
	for _, name := range sortedKeys(state.Indices) {
		idx := state.Indices[name]
		fmt.Fprintf(tr, "%s\t%d\t%d\t%s\n", idx.Name, idx.Settings.Shards, idx.Settings.Replicas, ago(idx.Created))
	}

	fmt.Fprintf(tr, "\nTEMPLATE\tVERSION\tPATTERNS\n")
	for _, name := range sortedKeys(state.Templates) {
		tmpl := state.Templates[name]
		patterns := ""
		for i, p := range tmpl.Patterns {
			if i > 0 {
				patterns += ","
			}
			patterns += p
		}
		fmt.Fprintf(tr, "%s\t%d\t%s\n", tmpl.Name, tmpl.Version, patterns)
	}

	tr.Flush()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return durationToString(time.Since(t))
}

func durationToString(d time.Duration) string {
	hr := d.Hours()
	if hr > 24 {
		return fmt.Sprintf("%dd", int(hr/24))
	}
	if hr > 1 {
		return fmt.Sprintf("%dh", int(hr))
	}

	min := d.Minutes()
	if min > 1 {
		return fmt.Sprintf("%dm", int(min))
	}

	return fmt.Sprintf("%ds", int(d.Seconds()))
}

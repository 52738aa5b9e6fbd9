package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jstrand/preflight/internal/api"
	"github.com/urfave/cli/v2"
)

func auditCmd(c *cli.Context) error {
	client, err := setup(c)
	if err != nil {
		return err
	}

	entries, err := client.Audit(c.Context)
	if err != nil {
		return err
	}

	printAudit(entries, os.Stdout)
	return nil
}

func printAudit(entries []api.AuditEntry, w io.Writer) {
	tr := tabwriter.NewWriter(w, 6, 6, 4, ' ', 0)
	fmt.Fprintf(tr, "TIME\tACTOR\tACTION\tRESOURCE\n")
	for _, entry := range entries {
		actor := entry.Actor
		if len(actor) > 6 {
			actor = actor[:6]
		}
		fmt.Fprintf(tr, "%s\t%s\t%s\t%s\n", ago(entry.Time), actor, entry.Action, entry.Resource)
	}
	tr.Flush()
}

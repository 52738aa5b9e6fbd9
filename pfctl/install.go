package main

import (
	"fmt"

	"github.com/jstrand/preflight/internal/installer"
	"github.com/urfave/cli/v2"
)

func installCmd(c *cli.Context) error {
	client, err := setup(c)
	if err != nil {
		return err
	}

	// seed the snapshot so the installer can skip resources that already exist
	if err := client.Refresh(c.Context); err != nil {
		return err
	}

	inst := &installer.Installer{Source: client, Store: client}

	errCh := make(chan error, 1)
	inst.EnsureInstalled(c.Context, func(err error) { errCh <- err })
	if err := <-errCh; err != nil {
		return err
	}

	fmt.Printf("%s and %s are installed\n", installer.LatestIndexName, installer.AuditTemplateName)
	return nil
}

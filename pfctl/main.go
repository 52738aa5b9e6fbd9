package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jstrand/preflight/internal/metaclient"
	"github.com/jstrand/preflight/internal/rpc"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "pfctl",
		Usage: "Preflight admin tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "metad",
				Usage:    "address of the metad server i.e. `metad.mydomain` or `metad.mydomain:8270`",
				Required: true,
				EnvVars:  []string{"PREFLIGHT_METAD"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "timeout when sending requests to metad",
				Value: time.Second * 15,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "state",
				Usage:  "Print the indices and templates in the metadata registry",
				Action: stateCmd,
			},
			{
				Name:   "install",
				Usage:  "Ensure the internal index and audit template are installed",
				Action: installCmd,
			},
			{
				Name:   "audit",
				Usage:  "Print recent registry mutations",
				Action: auditCmd,
			},
		},
	}

	err := app.Run(os.Args)
	if err == nil {
		return
	}

	fmt.Fprint(os.Stderr, getErrorString(err))
	os.Exit(1)
}

func setup(c *cli.Context) (*metaclient.Client, error) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting homedir: %w", err)
	}
	dir := filepath.Join(homedir, ".pfctl")

	cert, _, err := rpc.LoadCertificate(dir)
	if err != nil {
		return nil, fmt.Errorf("loading cert: %w", err)
	}

	trusted, err := loadTrustedCerts(dir)
	if err != nil {
		return nil, err
	}

	client := rpc.NewClient(cert, c.Duration("timeout"), rpc.AuthorizerFunc(func(fingerprint string) bool {
		_, ok := trusted[fingerprint]
		return ok
	}))

	return metaclient.New(client, rpc.UrlPrefix(c.String("metad"))), nil
}

func loadTrustedCerts(dir string) (map[string]struct{}, error) {
	m := map[string]struct{}{}

	buf, err := os.ReadFile(filepath.Join(dir, "trustedcerts"))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading trusted certs file: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewBuffer(buf))
	for scanner.Scan() {
		m[scanner.Text()] = struct{}{}
	}

	return m, nil
}

func getErrorString(err error) string {
	es := &rpc.ErrUntrustedServer{}
	if errors.As(err, &es) {
		return fmt.Sprintf("The certificate presented by the server is not trusted. Use this command to trust it:\n\n  echo \"%s\" >> %s\n\n", es.Fingerprint, "~/.pfctl/trustedcerts")
	}

	ec := &rpc.ErrUntrustedClient{}
	if errors.As(err, &ec) {
		return fmt.Sprintf("The server does not trust your client certificate.\nAdd its fingerprint to metad's `clients.toml` like this:\n\n[[ client ]]\nfingerprint = \"%s\"\n\n", ec.Fingerprint)
	}

	return fmt.Sprintf("error: %s\n", err)
}

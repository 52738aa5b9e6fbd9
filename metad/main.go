package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jstrand/preflight/internal/api"
	"github.com/jstrand/preflight/internal/installer"
	"github.com/jstrand/preflight/internal/rpc"
)

func main() {
	var (
		addr      = flag.String("addr", ":8270", "address on which to serve the metadata API")
		dataDir   = flag.String("data-dir", "./data", "directory for the registry, audit log, and TLS certificate")
		pprofPort = flag.Uint("pprof-port", 0, "port to serve default pprof profiling endpoints on or 0 to disable")
	)
	flag.Parse()

	if *pprofPort != 0 {
		go func() {
			log.Println(http.ListenAndServe(fmt.Sprintf(":%d", *pprofPort), nil)) // default handler has pprof endpoints when package is imported
		}()
	}

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("fatal error while creating data directory: %s", err)
	}

	cert, fingerprint, err := rpc.LoadCertificate(*dataDir)
	if err != nil {
		log.Fatalf("fatal error while loading certificate: %s", err)
	}
	log.Printf("metad certificate fingerprint: %s", fingerprint)

	store, err := newMetadataStore(filepath.Join(*dataDir, "metadata.toml"))
	if err != nil {
		log.Fatalf("fatal error while loading metadata registry: %s", err)
	}

	audit, err := newAuditLog(filepath.Join(*dataDir, "audit.log"))
	if err != nil {
		log.Fatalf("fatal error while opening audit log: %s", err)
	}

	trusted, err := loadTrustedClients(filepath.Join(*dataDir, "clients.toml"))
	if err != nil {
		log.Fatalf("fatal error while reading trusted clients: %s", err)
	}

	// guarantee our own resources exist before accepting traffic
	ensureInstalled(store, audit)

	auth := rpc.AuthorizerFunc(func(fp string) bool {
		_, ok := trusted[fp]
		return ok
	})

	svr := rpc.NewServer(*addr, cert,
		rpc.WithLogging(newApiHandler(store, audit, auth)))

	if err := svr.ListenAndServeTLS("", ""); err != nil {
		log.Fatalf("fatal error while running API HTTP server: %s", err)
	}
}

// localStore adapts the in-process registry to the installer's interfaces so
// metad can run the same ensure-installed flow its clients do, without a
// network round-trip.
type localStore struct {
	store *metadataStore
	audit *auditLog
}

func (l *localStore) State() *api.ClusterState { return l.store.State() }

func (l *localStore) CreateIndex(ctx context.Context, name string, spec api.IndexSpec, done func(error)) {
	_, err := l.store.CreateIndex(name, spec)
	if err == nil {
		l.audit.Record("local", "create-index", name)
	}
	done(err)
}

func (l *localStore) PutTemplate(ctx context.Context, name string, spec api.TemplateSpec, done func(error)) {
	_, err := l.store.PutTemplate(name, spec)
	if err == nil {
		l.audit.Record("local", "put-template", name)
	}
	done(err)
}

func ensureInstalled(store *metadataStore, audit *auditLog) {
	local := &localStore{store: store, audit: audit}
	inst := &installer.Installer{Source: local, Store: local}

	errCh := make(chan error, 1)
	inst.EnsureInstalled(context.Background(), func(err error) { errCh <- err })
	if err := <-errCh; err != nil {
		log.Fatalf("fatal error while installing internal resources: %s", err)
	}
	log.Printf("internal index and audit template are installed")
}

func loadTrustedClients(file string) (map[string]struct{}, error) {
	conf := &clientsConf{}
	_, err := toml.DecodeFile(file, conf)
	if os.IsNotExist(err) {
		return map[string]struct{}{}, nil // no clients trusted yet
	}
	if err != nil {
		return nil, err
	}

	m := map[string]struct{}{}
	for _, client := range conf.Clients {
		if client.Fingerprint != "" {
			m[client.Fingerprint] = struct{}{}
		}
	}
	return m, nil
}

type clientsConf struct {
	Clients []*clientSpec `toml:"client"`
}

type clientSpec struct {
	Fingerprint string `toml:"fingerprint"`
}

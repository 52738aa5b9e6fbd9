package rpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is an http.Client that authenticates servers by certificate
// fingerprint instead of CA chain.
type Client struct {
	*http.Client
	fingerprint string // this client's own cert fingerprint
}

func NewClient(cert tls.Certificate, timeout time.Duration, auth Authorizer) *Client {
	c := &Client{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSHandshakeTimeout: time.Second * 15,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, // safe because the fingerprint is checked in VerifyPeerCertificate
					Certificates:       []tls.Certificate{cert},
					VerifyPeerCertificate: func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
						for _, raw := range rawCerts {
							if auth.TrustsCert(Fingerprint(raw)) {
								return nil
							}
						}

						e := &ErrUntrustedServer{Fingerprint: "unknown"}
						if len(rawCerts) > 0 {
							e.Fingerprint = Fingerprint(rawCerts[0])
						}
						return e
					},
				},
			},
		},
	}
	if cert.Leaf != nil {
		c.fingerprint = Fingerprint(cert.Leaf.Raw)
	}
	return c
}

func (c *Client) GET(ctx context.Context, url string) (*http.Response, error) {
	return c.roundtrip(ctx, "GET", url, "", nil)
}

func (c *Client) PUT(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	return c.roundtrip(ctx, "PUT", url, contentType, body)
}

func (c *Client) roundtrip(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == 403 {
		resp.Body.Close()
		return nil, &ErrUntrustedClient{Fingerprint: c.fingerprint}
	}
	if resp.StatusCode >= 400 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(buf))}
	}

	return resp, nil
}

// NewServer returns an HTTP server that requires client certificates without
// verifying them - handlers decide who to trust via WithAuth.
func NewServer(addr string, cert tls.Certificate, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			ClientAuth:   tls.RequireAnyClientCert,
			MinVersion:   tls.VersionTLS12,
		},
	}
}

// UrlPrefix expands a host or host:port into a base URL, defaulting to the
// standard metad port.
func UrlPrefix(addr string) string {
	if strings.Contains(addr, ":") {
		return "https://" + addr
	}
	return fmt.Sprintf("https://%s:%d", addr, 8270)
}

type ErrUntrustedServer struct {
	Fingerprint string
}

func (e *ErrUntrustedServer) Error() string { return "untrusted server certificate" }

type ErrUntrustedClient struct {
	Fingerprint string
}

func (e *ErrUntrustedClient) Error() string { return "the server does not trust this client's certificate" }

// ServerError is any response with a status >= 400 other than 403.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error status: %d, body: %s", e.Status, e.Body)
}

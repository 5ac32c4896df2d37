// Package embedder declares the collaborator interfaces the core consumes
// rather than implements: certificate and token material,
// issuer key fetch for the access-token validator, property-change
// notification, and the packet-counter/reset hooks a status monitor class
// plugs into. Each interface follows a one-interface-per-collaborator
// style (compare internal/auth/authz/jwt.go's MembershipChecker).
package embedder

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/nmos-controlflow/ncp/pkg/ncp/resourcestore"
)

// CertificateSource supplies the CA bundle (and, optionally, a stapled OCSP
// response) a TLS listener uses for peer verification. The core never
// terminates TLS itself; this is consumed by whatever HTTP/WebSocket server
// the embedder runs in front of the session.
type CertificateSource interface {
	LoadCACertificates(ctx context.Context) ([]byte, error)
	GetOCSPResponse(ctx context.Context) ([]byte, error)
}

// TokenSource supplies a bearer token for outbound requests the node makes
// as a client (e.g. to its own registry).
type TokenSource interface {
	GetBearerToken(ctx context.Context) (string, error)
}

// IssuerKeyFetcher resolves an issuer's current JSON Web Key Set, used by
// the access-token validator when no key set is cached for that issuer.
type IssuerKeyFetcher interface {
	FetchIssuerKeys(ctx context.Context, issuerURI string) (json []byte, err error)
}

// PropertyChangeObserver is invoked after every successful property write.
// Index follows devicemodel.WholeValueWrite for Set,
// devicemodel.SequenceItemRemoved for RemoveSequenceItem, otherwise the
// affected sequence index.
type PropertyChangeObserver interface {
	OnPropertyChanged(oid resourcestore.OID, propertyName string, index int)
}

// MonitorCallbacks is a status monitor's device-specific counter source:
// GetPacketCounters lets the embedder's own collection loop read the
// counters and ResetMonitor zeroes them. devicemodel.Model.ResetMonitor
// does not call it; it resets only the monitor's resource properties.
type MonitorCallbacks interface {
	GetPacketCounters(oid resourcestore.OID) (map[string]int64, error)
	ResetMonitor(oid resourcestore.OID) error
}

// NoopPropertyChangeObserver discards every notification; useful as a
// default for embedders and tests that don't care about the callback.
type NoopPropertyChangeObserver struct{}

func (NoopPropertyChangeObserver) OnPropertyChanged(resourcestore.OID, string, int) {}

// InMemoryMonitorCallbacks is a minimal in-process MonitorCallbacks,
// backing cmd/ncp-node's reference status monitors.
type InMemoryMonitorCallbacks struct {
	counters map[resourcestore.OID]map[string]int64
}

func NewInMemoryMonitorCallbacks() *InMemoryMonitorCallbacks {
	return &InMemoryMonitorCallbacks{counters: make(map[resourcestore.OID]map[string]int64)}
}

func (c *InMemoryMonitorCallbacks) Seed(oid resourcestore.OID, counters map[string]int64) {
	c.counters[oid] = counters
}

func (c *InMemoryMonitorCallbacks) GetPacketCounters(oid resourcestore.OID) (map[string]int64, error) {
	return c.counters[oid], nil
}

func (c *InMemoryMonitorCallbacks) ResetMonitor(oid resourcestore.OID) error {
	for name := range c.counters[oid] {
		c.counters[oid][name] = 0
	}
	return nil
}

// HTTPIssuerKeyFetcher resolves an issuer's JWKS by GETting
// <issuerURI>/jwks, the conventional discovery path the rest of the
// ecosystem (including the teacher's own jwtverifier) assumes when no
// OpenID well-known document is available to point elsewhere.
type HTTPIssuerKeyFetcher struct {
	Client *http.Client
}

func NewHTTPIssuerKeyFetcher() *HTTPIssuerKeyFetcher {
	return &HTTPIssuerKeyFetcher{Client: http.DefaultClient}
}

func (f *HTTPIssuerKeyFetcher) FetchIssuerKeys(ctx context.Context, issuerURI string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURI+"/jwks", nil)
	if err != nil {
		return nil, fmt.Errorf("building jwks request for issuer %q: %w", issuerURI, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching jwks for issuer %q: %w", issuerURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("issuer %q jwks endpoint returned %s", issuerURI, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading jwks response for issuer %q: %w", issuerURI, err)
	}
	return data, nil
}

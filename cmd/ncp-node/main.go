package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nmos-controlflow/ncp/internal/config"
	"github.com/nmos-controlflow/ncp/internal/modeldefs"
	"github.com/nmos-controlflow/ncp/pkg/log"
	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/nmos-controlflow/ncp/pkg/ncp/datatype"
	"github.com/nmos-controlflow/ncp/pkg/ncp/devicemodel"
	"github.com/nmos-controlflow/ncp/pkg/ncp/embedder"
	ncpmetrics "github.com/nmos-controlflow/ncp/pkg/ncp/metrics"
	"github.com/nmos-controlflow/ncp/pkg/ncp/resourcestore"
	"github.com/nmos-controlflow/ncp/pkg/ncp/session"
	"github.com/nmos-controlflow/ncp/pkg/ncp/validator"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ncp-node",
		Short: "Reference AMWA NMOS IS-12 Control Protocol node",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.ConfigFile()
			}
			cfg, err := config.LoadOrGenerate(path)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the node's config.yaml (defaults to "+config.DefaultConfigFile+")")
	return cmd
}

func runServe(cfg *config.Config) error {
	logger := log.InitLogs(cfg.Service.LogLevel)
	logger.Info("starting control protocol node")
	defer logger.Info("control protocol node stopped")
	logger.Infof("using config: %s", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)

	var cleanupFuncs []func() error
	defer func() {
		logger.Info("cancelling context to stop all servers")
		cancel()

		logger.Info("starting cleanup")
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.WithError(err).Error("cleanup error")
			}
		}
		logger.Info("cleanup completed")
	}()

	cert, err := config.LoadServerCertificates(cfg, logger)
	if err != nil {
		return fmt.Errorf("loading server certificates: %w", err)
	}

	model, hub, err := buildDeviceModel(logger)
	if err != nil {
		return fmt.Errorf("building device model: %w", err)
	}

	m := ncpmetrics.New()

	v := validator.New(validator.Config{
		Audience:        cfg.Validator.Audience,
		Scope:           cfg.Validator.Scope,
		Keys:            embedder.NewHTTPIssuerKeyFetcher(),
		KeyFetchTimeout: time.Duration(cfg.Validator.KeyFetchTimeoutSeconds) * time.Second,
		KeySetTTL:       time.Duration(cfg.Validator.KeySetTTLSeconds) * time.Second,
	})
	v.SetMetrics(m)
	cleanupFuncs = append(cleanupFuncs, func() error {
		logger.Info("stopping access-token validator")
		v.Close()
		return nil
	})

	return runServers(ctx, cancel, logger, cfg, cert, model, hub, v, m)
}

// deviceModelSeed holds the oids the reference embedder pre-populates so a
// freshly started node has something a controller can Get/Set/subscribe to.
const (
	rootBlockOID                         = resourcestore.RootBlockOID
	deviceManagerOID   resourcestore.OID = 2
	classManagerOID    resourcestore.OID = 3
	receiverMonitorOID resourcestore.OID = 4
)

func buildDeviceModel(logger *logrus.Logger) (*devicemodel.Model, *resourcestore.Hub, error) {
	classes := classregistry.NewRegistry()
	if err := modeldefs.LoadClasses(classes); err != nil {
		return nil, nil, fmt.Errorf("loading class descriptors: %w", err)
	}
	datatypes := datatype.NewRegistry()
	if err := modeldefs.LoadDatatypes(datatypes); err != nil {
		return nil, nil, fmt.Errorf("loading datatype descriptors: %w", err)
	}

	hub := resourcestore.NewHub()
	store := resourcestore.NewStore(hub)

	if err := store.Insert(&resourcestore.Resource{
		OID: rootBlockOID, ClassID: classregistry.ClassID{1, 1}, ConstantOID: true,
		Role:       "root",
		Properties: map[string]resourcestore.Value{"enabled": true},
	}); err != nil {
		return nil, nil, err
	}

	owner := uint32(rootBlockOID)
	if err := store.Insert(&resourcestore.Resource{
		OID: deviceManagerOID, ClassID: classregistry.ClassID{1, 3, 1}, ConstantOID: true,
		Owner: &owner, Role: "DeviceManager",
		Properties: map[string]resourcestore.Value{
			"ncVersion":         "v1.0",
			"manufacturer":      map[string]any{"name": "nmos-controlflow"},
			"product":           map[string]any{"name": "ncp-node", "key": "reference"},
			"serialNumber":      "0",
			"userInventoryCode": nil,
			"deviceName":        "ncp-node",
			"deviceRole":        "reference control protocol node",
			"operationalState":  "Normal",
			"resetCause":        "PowerOn",
			"message":           nil,
		},
	}); err != nil {
		return nil, nil, err
	}

	if err := store.Insert(&resourcestore.Resource{
		OID: classManagerOID, ClassID: classregistry.ClassID{1, 3, 2}, ConstantOID: true,
		Owner: &owner, Role: "ClassManager",
		Properties: map[string]resourcestore.Value{},
	}); err != nil {
		return nil, nil, err
	}

	monitorCallbacks := embedder.NewInMemoryMonitorCallbacks()
	monitorCallbacks.Seed(receiverMonitorOID, map[string]int64{
		"packetErrorCount": 0,
		"packetLossCount":  0,
	})
	if err := store.Insert(&resourcestore.Resource{
		OID: receiverMonitorOID, ClassID: classregistry.ClassID{1, 2, 2},
		Owner: &owner, Role: "receiver-monitor-1",
		Properties: map[string]resourcestore.Value{
			"enabled":                      true,
			"connectionStatus":             "Connected",
			"connectionStatusMessage":      nil,
			"payloadStatus":                "PayloadOK",
			"payloadStatusMessage":         nil,
			"synchronizationStatus":        "Healthy",
			"synchronizationStatusMessage": nil,
			"packetErrorCount":             int64(0),
			"packetLossCount":              int64(0),
		},
	}); err != nil {
		return nil, nil, err
	}

	model := &devicemodel.Model{
		Store:     store,
		Classes:   classes,
		Datatypes: datatypes,
		OnPropertyChanged: func(oid resourcestore.OID, propertyName string, index int) {
			logger.WithFields(logrus.Fields{"oid": oid, "property": propertyName, "index": index}).Debug("property changed")
		},
	}

	startCounterPoller(model, monitorCallbacks)

	return model, hub, nil
}

// startCounterPoller is the embedder's own collection loop the
// MonitorCallbacks doc comment anticipates: it periodically copies the
// counters a real implementation would be accumulating (here, the
// in-memory stand-in) into the resource properties ResetMonitor zeroes.
func startCounterPoller(model *devicemodel.Model, callbacks *embedder.InMemoryMonitorCallbacks) {
	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for range ticker.C {
			counters, err := callbacks.GetPacketCounters(receiverMonitorOID)
			if err != nil {
				continue
			}
			for name, value := range counters {
				v := value
				_, _ = model.Store.Modify(receiverMonitorOID, func(r *resourcestore.Resource) (string, any, error) {
					if r.Properties[name] == v {
						return "", nil, nil
					}
					r.Properties[name] = v
					return "ValueChanged", map[string]any{"value": v}, nil
				})
			}
		}
	}()
}

func runServers(ctx context.Context, cancel context.CancelFunc, logger *logrus.Logger, cfg *config.Config, cert *tls.Certificate, model *devicemodel.Model, hub *resourcestore.Hub, v *validator.Validator, m *ncpmetrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/x-nmos/ncp/v1.0/", newSessionHandler(logger, model, hub, v, cfg, m))

	server := &http.Server{
		Addr:      cfg.Service.BindAddress,
		Handler:   mux,
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{*cert}},
	}

	// Serve and the shutdown watcher run side by side and are joined with
	// errgroup the way forward() pairs its two pipe goroutines: whichever
	// returns first determines the outcome, the other always exits clean.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("address", cfg.Service.BindAddress).Info("starting control protocol server")
		if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control protocol server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("control protocol node started, waiting for shutdown signal...")
	if err := g.Wait(); err != nil {
		cancel()
		return err
	}
	return nil
}

var errTooManySessions = errors.New("too many concurrent sessions")

func newSessionHandler(logger *logrus.Logger, model *devicemodel.Model, hub *resourcestore.Hub, v *validator.Validator, cfg *config.Config, m *ncpmetrics.Metrics) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	var active int64
	maxSessions := int64(cfg.Session.MaxSessions)

	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := v.Validate(r.Context(), token, r.Method, r.URL.Path); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}

		if maxSessions > 0 {
			n := atomic.AddInt64(&active, 1)
			if n > maxSessions {
				atomic.AddInt64(&active, -1)
				http.Error(w, errTooManySessions.Error(), http.StatusServiceUnavailable)
				return
			}
			defer atomic.AddInt64(&active, -1)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}

		s := session.New(conn, model, hub, logger.WithField("remote", r.RemoteAddr), cfg.Session.SendQueueDepth)
		s.SetMetrics(m)
		s.SetPingInterval(time.Duration(cfg.Session.PingIntervalSeconds) * time.Second)
		s.Run(r.Context())
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/patwie/roscore-go/internal/logging"
	"github.com/patwie/roscore-go/internal/notifier"
	"github.com/patwie/roscore-go/internal/rosname"
	"github.com/patwie/roscore-go/master"
)

var (
	serveHost        string
	servePort        int
	serveLogLevel    string
	serveConfigFile  string
	serveMetricsAddr string
	serveParams      paramFlags
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the master, listening for XML-RPC connections",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&serveHost, "host", "", "host to advertise in the master URI (default: detected automatically)")
	cmd.Flags().IntVar(&servePort, "port", 0, "port to bind (default: 11311)")
	cmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level: trace, debug, info, warn, error (default: info)")
	cmd.Flags().StringVar(&serveConfigFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (default: disabled)")
	cmd.Flags().VarP(&serveParams, "param", "p", "seed a parameter as key=value (JSON-typed value), may be repeated")
	return cmd
}

const defaultPort = 11311

func runServe(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadFileConfig(serveConfigFile)
	if err != nil {
		return err
	}

	host := mergeString(serveHost, fileCfg.Host, "")
	if host == "" {
		host, _ = rosname.AdvertiseHost()
	}
	port := mergeInt(servePort, fileCfg.Port, defaultPort)
	logLevel := mergeString(serveLogLevel, fileCfg.LogLevel, "info")
	metricsAddr := mergeString(serveMetricsAddr, fileCfg.MetricsAddr, "")
	maxOutbound := mergeInt(0, fileCfg.MaxOutbound, notifier.DefaultMaxConcurrent)
	outboundRate := mergeFloat(0, fileCfg.OutboundRate, notifier.DefaultRatePerSecond)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid --log-level %q", logLevel)
	}
	logging.SetLevel(level)
	log := logging.Module(logging.ModuleFacade)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "binding port %d", port)
	}
	uri := fmt.Sprintf("http://%s:%d", host, port)

	notify := notifier.New(maxOutbound, outboundRate, notifier.DefaultTimeout)
	metrics := master.NewMetrics()
	notify.SetFailureHook(metrics.RecordOutboundFailure)
	m := master.New(uri, notify, metrics)

	for _, flag := range fileCfg.Params {
		if key, value, err := parseParamFlag(flag); err == nil {
			m.SeedParam(key, value)
		}
	}
	for _, flag := range serveParams.raw {
		key, value, err := parseParamFlag(flag)
		if err != nil {
			return err
		}
		m.SeedParam(key, value)
	}

	instanceID := uuid.New()
	startedAt := time.Now()
	mux := http.NewServeMux()
	mux.Handle("/", m.Handler())
	mux.HandleFunc("/debug/instance", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"instance": instanceID.String(),
			"uri":      m.URI(),
			"started":  startedAt,
			"uptime":   time.Since(startedAt).String(),
			"pid":      os.Getpid(),
		})
	})

	server := &http.Server{Handler: mux}
	serverErrs := make(chan error, 1)
	go func() {
		serverErrs <- server.Serve(listener)
	}()

	var metricsServer *http.Server
	if metricsAddr != "" {
		metricsServer = &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
	}

	log.Debugf("master listening at %s", uri)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		log.Debugf("shutting down")
	case err := <-serverErrs:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "master server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	if metricsServer != nil {
		metricsServer.Shutdown(ctx)
	}
	notify.Shutdown()
	return nil
}

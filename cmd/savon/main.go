// Package main is the savon command line client. It resolves a service
// contract from the configured WSDL or endpoint and lets the user inspect
// the contract or call operations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radar/savon"
	"github.com/radar/savon/internal/config"
	"github.com/radar/savon/internal/observability"
	"github.com/radar/savon/signature"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0"
var version = "dev"

func main() {
	os.Exit(run())
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: savon [flags] <command> [operation]

commands:
  operations          list the operations described by the contract
  service-name        print the service name
  call <operation>    invoke an operation; parameters via -params

flags:
`)
	flag.PrintDefaults()
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	params := flag.String("params", "", "operation parameters as a JSON object")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, "savon", version)
	if err != nil {
		logger.Error("tracing setup failed", zap.Error(err))
		return 1
	}
	defer shutdownTracing(context.Background())

	client, err := buildClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("client construction failed", zap.Error(err))
		return 1
	}

	switch flag.Arg(0) {
	case "operations":
		ops, err := client.Operations()
		if err != nil {
			logger.Error("listing operations failed", zap.Error(err))
			return 1
		}
		for _, op := range ops {
			fmt.Println(op)
		}
	case "service-name":
		name, err := client.ServiceName()
		if err != nil {
			logger.Error("reading service name failed", zap.Error(err))
			return 1
		}
		fmt.Println(name)
	case "call":
		if flag.NArg() < 2 {
			usage()
			return 2
		}
		if err := callOperation(ctx, client, flag.Arg(1), *params, logger); err != nil {
			logger.Error("call failed", zap.String("operation", flag.Arg(1)), zap.Error(err))
			return 1
		}
	default:
		usage()
		return 2
	}

	logger.Debug("done", zap.String("version", version))
	return 0
}

// buildClient translates the CLI configuration into client options.
func buildClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*savon.Client, error) {
	opts := &savon.Options{
		WSDL:               cfg.Service.WSDL,
		Endpoint:           cfg.Service.Endpoint,
		Namespace:          cfg.Service.Namespace,
		OpenTimeout:        cfg.HTTP.OpenTimeout,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		Proxy:              cfg.HTTP.Proxy,
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		Logger:             logger,
	}
	if cfg.Service.SOAPVersion == 2 {
		opts.SOAPVersion = savon.SOAP12
	}
	if cfg.Auth.Basic != nil {
		opts.BasicAuth = &savon.BasicAuth{
			Username: cfg.Auth.Basic.Username,
			Password: cfg.Auth.Basic.Password,
		}
	}
	if cfg.Auth.WSSE != nil {
		opts.WSSEAuth = &savon.WSSEAuth{
			Username: cfg.Auth.WSSE.Username,
			Password: cfg.Auth.WSSE.Password,
			Digest:   cfg.Auth.WSSE.Digest,
		}
		opts.WSSETimestamp = cfg.Auth.WSSE.Timestamp
	}
	if cfg.Security.VerifyResponse {
		opts.Security.VerifyResponse = true
		switch cfg.Security.Verifier {
		case "hmac":
			opts.Security.Verifier = &signature.HMACVerifier{Secret: []byte(cfg.Security.HMACSecret)}
		case "digest":
			opts.Security.Verifier = &signature.DigestVerifier{}
		}
	}

	return savon.NewContext(ctx, opts)
}

func callOperation(ctx context.Context, client *savon.Client, operation, params string, logger *zap.Logger) error {
	var message map[string]any
	if params != "" {
		if err := json.Unmarshal([]byte(params), &message); err != nil {
			return fmt.Errorf("parsing -params: %w", err)
		}
	}
	logger.Debug("calling operation",
		zap.String("operation", operation),
		zap.Any("params", observability.RedactParams(message, nil)),
	)

	resp, err := client.Call(ctx, operation, savon.Message(message))
	if err != nil {
		return err
	}

	body, err := resp.Body()
	if err != nil {
		// Not an envelope; print the raw payload.
		fmt.Println(string(resp.XML()))
		return nil
	}

	out, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	logger.Debug("call finished", zap.Int("status", resp.StatusCode))
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ruteri/key-issuer/cmd/flags"
	"github.com/ruteri/key-issuer/common"
	"github.com/ruteri/key-issuer/cryptoutils"
	"github.com/ruteri/key-issuer/httpserver"
	"github.com/ruteri/key-issuer/interfaces"
	"github.com/ruteri/key-issuer/issuer"
	"github.com/ruteri/key-issuer/metrics"
	"github.com/ruteri/key-issuer/reactor"
	"github.com/ruteri/key-issuer/storage"
	"github.com/urfave/cli/v2"
)

const usageExitCode = 2

var KeyServerLogFlag = flags.LogServiceFlagFn("key-server")

var PortFlag = &cli.IntFlag{
	Name:     "port",
	Aliases:  []string{"p"},
	Required: true,
	Usage:    "TCP port to accept key requests on",
}
var ThreadsFlag = &cli.IntFlag{
	Name:     "threads",
	Required: true,
	Usage:    "number of key generation workers",
}
var IssuerFlag = &cli.StringFlag{
	Name:     "issuer",
	Required: true,
	Usage:    "issuer distinguished name, e.g. \"CN=KeyIssuer,O=NSU\"",
}
var KeyFlag = &cli.StringFlag{
	Name:     "key",
	Required: true,
	Usage:    "path to the issuer private key PEM (PKCS#8, PKCS#1 or SEC1)",
}
var ListenHostFlag = &cli.StringFlag{
	Name:  "listen-host",
	Value: "0.0.0.0",
	Usage: "address to accept key requests on",
}
var KeyBitsFlag = &cli.IntFlag{
	Name:  "key-bits",
	Value: cryptoutils.DefaultKeyBits,
	Usage: "RSA modulus size of issued keys",
}
var ValidityDaysFlag = &cli.IntFlag{
	Name:  "validity-days",
	Value: 365,
	Usage: "lifetime of issued certificates in days",
}
var ArchiveFlag = &cli.StringSliceFlag{
	Name:  "archive",
	Usage: "storage URI to archive issued certificates to (file://, s3://, ipfs://, vault://), repeatable",
}
var AdminAddrFlag = &cli.StringFlag{
	Name:  "admin-addr",
	Value: "",
	Usage: "address for the admin HTTP server (health, drain, stats), empty to disable",
}

func main() {
	cli.HelpFlag = &cli.BoolFlag{
		Name:    "help",
		Aliases: []string{"?"},
		Usage:   "show help",
	}

	app := &cli.App{
		Name:  "key-server",
		Usage: "Issue RSA keys and certificates over TCP",
		Flags: append([]cli.Flag{
			PortFlag, ThreadsFlag, IssuerFlag, KeyFlag, ListenHostFlag,
			KeyBitsFlag, ValidityDaysFlag, ArchiveFlag, AdminAddrFlag, KeyServerLogFlag,
		}, flags.CommonFlags...),
		Version: common.Version,
		OnUsageError: func(cCtx *cli.Context, err error, isSubcommand bool) error {
			return cli.Exit(err, usageExitCode)
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		// Errors that are not cli.ExitCoders come from flag validation.
		log.Println(err)
		os.Exit(usageExitCode)
	}
}

func run(cCtx *cli.Context) error {
	port := cCtx.Int(PortFlag.Name)
	threads := cCtx.Int(ThreadsFlag.Name)
	validityDays := cCtx.Int(ValidityDaysFlag.Name)

	if err := validateFlags(port, threads, validityDays); err != nil {
		return cli.Exit(err, usageExitCode)
	}

	logger := flags.SetupLogger(cCtx)

	signer, err := cryptoutils.LoadPrivateKeyPEM(cCtx.String(KeyFlag.Name))
	if err != nil {
		logger.Error("Failed to load issuer key", "err", err)
		return cli.Exit(err, 1)
	}

	ca, err := cryptoutils.NewAuthority(cCtx.String(IssuerFlag.Name), signer,
		cryptoutils.WithKeyBits(cCtx.Int(KeyBitsFlag.Name)),
		cryptoutils.WithValidity(time.Duration(validityDays)*24*time.Hour),
	)
	if err != nil {
		logger.Error("Failed to create certificate authority", "err", err)
		return cli.Exit(err, 1)
	}
	logger.Info("Certificate authority ready", "issuer", ca.Issuer().String(), "key_bits", ca.KeyBits())

	m := metrics.NewMetrics("key_issuer")

	archive, err := setupArchive(cCtx, logger)
	if err != nil {
		logger.Error("Failed to configure archive", "err", err)
		return cli.Exit(err, 1)
	}

	pool, err := issuer.NewPool(threads, logger)
	if err != nil {
		logger.Error("Failed to start worker pool", "err", err)
		return cli.Exit(err, 1)
	}
	defer pool.Close()

	cache := issuer.NewCache(pool, issuer.NewGenerator(ca, archive, logger, m), logger, m)

	srv, err := reactor.New(reactor.Config{
		ListenAddr: net.JoinHostPort(cCtx.String(ListenHostFlag.Name), strconv.Itoa(port)),
		Log:        logger,
	}, cache, m)
	if err != nil {
		logger.Error("Failed to bind", "err", err)
		return cli.Exit(err, 1)
	}
	defer srv.Close()

	adminAddr := cCtx.String(AdminAddrFlag.Name)
	if adminAddr != "" || cCtx.String(flags.MetricsAddrFlag.Name) != "" {
		admin, err := httpserver.New(flags.ConfigureAdminServer(cCtx, logger, adminAddr), func() httpserver.Stats {
			return httpserver.Stats{
				Connections:  srv.Connections(),
				CacheEntries: cache.Len(),
				Workers:      pool.Size(),
				Queued:       pool.Queued(),
			}
		}, m)
		if err != nil {
			logger.Error("Failed to create admin server", "err", err)
			return cli.Exit(err, 1)
		}
		admin.RunInBackground()
		defer admin.Shutdown()
	}

	ctx, cancel := context.WithCancel(cCtx.Context)
	defer cancel()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(exit)
	go func() {
		select {
		case <-exit:
			logger.Info("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("Server is running, press Ctrl+C to stop", "addr", srv.Address(), "threads", threads)
	if err := srv.Run(ctx); err != nil {
		return cli.Exit(err, 1)
	}

	logger.Info("Server shutdown complete")
	return nil
}

func validateFlags(port, threads, validityDays int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("--port %d out of range", port)
	}
	if threads <= 0 {
		return errors.New("--threads must be positive")
	}
	if validityDays <= 0 {
		return errors.New("--validity-days must be positive")
	}
	return nil
}

// setupArchive returns nil when no --archive location is given.
func setupArchive(cCtx *cli.Context, logger *slog.Logger) (interfaces.StorageBackend, error) {
	uris := cCtx.StringSlice(ArchiveFlag.Name)
	if len(uris) == 0 {
		return nil, nil
	}

	locations, err := storage.ParseLocations(uris)
	if err != nil {
		return nil, err
	}

	archive, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, err
	}
	logger.Info("Archiving issued certificates", "location", archive.LocationURI())
	return archive, nil
}

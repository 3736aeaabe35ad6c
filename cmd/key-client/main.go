package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ruteri/key-issuer/client"
	"github.com/ruteri/key-issuer/cmd/flags"
	"github.com/ruteri/key-issuer/common"
	"github.com/urfave/cli/v2"
)

var HostFlag = &cli.StringFlag{
	Name:     "host",
	Aliases:  []string{"h"},
	Required: true,
	Usage:    "key server hostname or IP address",
}
var PortFlag = &cli.IntFlag{
	Name:     "port",
	Aliases:  []string{"p"},
	Required: true,
	Usage:    "key server TCP port",
}
var NameFlag = &cli.StringFlag{
	Name:     "name",
	Aliases:  []string{"n"},
	Required: true,
	Usage:    "identity to request, printable ASCII",
}
var DelayFlag = &cli.IntFlag{
	Name:    "delay",
	Aliases: []string{"d"},
	Value:   0,
	Usage:   "seconds to wait after sending the request before reading the response",
}
var AbortFlag = &cli.BoolFlag{
	Name:    "abort",
	Aliases: []string{"a"},
	Usage:   "close the connection right after sending the request",
}
var OutFlag = &cli.StringFlag{
	Name:    "out",
	Aliases: []string{"o"},
	Value:   ".",
	Usage:   "directory for the .key and .crt files",
}
var VerifyFlag = &cli.BoolFlag{
	Name:  "verify",
	Usage: "check that the key matches the certificate and its CN before saving",
}

func main() {
	// -h is the host.
	cli.HelpFlag = &cli.BoolFlag{
		Name:    "help",
		Aliases: []string{"?"},
		Usage:   "show help",
	}

	app := &cli.App{
		Name:    "key-client",
		Usage:   "Request an RSA key and certificate from a key server",
		Version: common.Version,
		Flags: append([]cli.Flag{
			HostFlag, PortFlag, NameFlag, DelayFlag, AbortFlag, OutFlag, VerifyFlag,
		}, flags.ClientFlags...),
		OnUsageError: func(cCtx *cli.Context, err error, isSubcommand bool) error {
			return cli.Exit(err, client.ExitCode(client.ErrInvalidConfig))
		},
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg := client.Config{
				Host:        cCtx.String(HostFlag.Name),
				Port:        cCtx.Int(PortFlag.Name),
				Identity:    cCtx.String(NameFlag.Name),
				Delay:       time.Duration(cCtx.Int(DelayFlag.Name)) * time.Second,
				Abort:       cCtx.Bool(AbortFlag.Name),
				OutDir:      cCtx.String(OutFlag.Name),
				Verify:      cCtx.Bool(VerifyFlag.Name),
				DialTimeout: 30 * time.Second,
				Log:         logger,
			}
			logger.Debug("Requesting key material",
				"server", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
				"identity", cfg.Identity,
				"delay", cfg.Delay,
				"abort", cfg.Abort,
				"out", cfg.OutDir)

			result, err := client.Run(cCtx.Context, cfg)
			if err != nil {
				logger.Error("Request failed", "err", err)
				return cli.Exit("", client.ExitCode(err))
			}
			if result != nil {
				fmt.Printf("%s\n%s\n", result.KeyPath, result.CertPath)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Println(err)
		os.Exit(client.ExitCode(client.ErrInvalidConfig))
	}
}

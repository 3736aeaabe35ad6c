package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ruteri/key-issuer/cryptoutils"
	"github.com/ruteri/key-issuer/interfaces"
	"github.com/ruteri/key-issuer/protocol"
)

const (
	keyFileMode  os.FileMode = 0o600
	certFileMode os.FileMode = 0o644
)

var (
	// ErrInvalidConfig is a request that cannot be sent, such as a missing
	// host or an identity that is not a usable file name.
	ErrInvalidConfig = errors.New("invalid client configuration")

	// ErrVerification is key material that does not match its certificate
	// or the requested identity.
	ErrVerification = errors.New("key material verification failed")
)

// Config describes a single key request.
type Config struct {
	Host     string
	Port     int
	Identity string

	// Delay is slept after sending the request and before reading the response.
	Delay time.Duration
	// Abort closes the connection right after the request is sent.
	Abort bool
	// OutDir receives <identity>.key and <identity>.crt.
	OutDir string
	// Verify checks the key against the certificate and the certificate CN
	// before anything is written.
	Verify bool

	DialTimeout time.Duration
	Log         *slog.Logger
}

// Result locates the files written by Run.
type Result struct {
	KeyPath  string
	CertPath string
	Material *interfaces.KeyMaterial
}

// Run requests key material for cfg.Identity and writes it under cfg.OutDir.
//
// Parameters:
//   - ctx: Cancels dialing, the delay and the response read
//   - cfg: Request description
//
// Returns:
//   - Paths of the written files, or nil when cfg.Abort is set
//   - protocol.ErrServerFailure if the server answered with an error response
//   - ErrInvalidConfig or ErrVerification as described above
//   - Any other error is an I/O failure
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create output directory %s: %w", outDir, err)
	}

	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	log.Debug("Sending request", "server", address, "identity", cfg.Identity)
	if err := protocol.WriteRequest(conn, cfg.Identity); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if cfg.Abort {
		log.Info("Closing connection after request as requested")
		return nil, nil
	}

	if cfg.Delay > 0 {
		select {
		case <-time.After(cfg.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	material, err := protocol.ReadResponse(conn)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	if cfg.Verify {
		expected := interfaces.NewIdentity([]byte(cfg.Identity)).String()
		if err := cryptoutils.VerifyCertificate(material.PrivateKeyPEM, material.CertificatePEM, expected); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVerification, err)
		}
	}

	result := &Result{
		KeyPath:  filepath.Join(outDir, cfg.Identity+".key"),
		CertPath: filepath.Join(outDir, cfg.Identity+".crt"),
		Material: material,
	}
	if err := writeFile(result.KeyPath, material.PrivateKeyPEM, keyFileMode); err != nil {
		return nil, err
	}
	if err := writeFile(result.CertPath, material.CertificatePEM, certFileMode); err != nil {
		return nil, err
	}

	log.Info("Key files saved", "key", result.KeyPath, "cert", result.CertPath)
	return result, nil
}

func (cfg Config) validate() error {
	if cfg.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.Delay < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidConfig)
	}
	return ValidateIdentity(cfg.Identity)
}

// ValidateIdentity rejects identities the server would refuse and those that
// cannot name the output files.
func ValidateIdentity(identity string) error {
	switch {
	case identity == "":
		return fmt.Errorf("%w: empty identity", ErrInvalidConfig)
	case identity == "." || identity == "..":
		return fmt.Errorf("%w: identity %q is not a file name", ErrInvalidConfig, identity)
	case strings.ContainsAny(identity, `/\`):
		return fmt.Errorf("%w: identity %q contains a path separator", ErrInvalidConfig, identity)
	case len(identity) > protocol.MaxIdentityLength:
		return fmt.Errorf("%w: identity is %d bytes, at most %d allowed", ErrInvalidConfig, len(identity), protocol.MaxIdentityLength)
	}
	for i := 0; i < len(identity); i++ {
		if !protocol.IsPrintable(identity[i]) {
			return fmt.Errorf("%w: byte 0x%02x at offset %d is not printable ASCII", ErrInvalidConfig, identity[i], i)
		}
	}
	return nil
}

// writeFile replaces path atomically with data.
func writeFile(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ExitCode maps a Run error to the key-client process exit status:
// 0 on success, 2 for an error response, a failed verification or invalid
// input, and 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, protocol.ErrServerFailure),
		errors.Is(err, ErrVerification),
		errors.Is(err, ErrInvalidConfig):
		return 2
	default:
		return 1
	}
}

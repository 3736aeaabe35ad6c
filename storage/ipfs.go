package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/key-issuer/interfaces"
)

// IPFSBackend adds and pins content through an IPFS node's HTTP API. The
// mapping from content ID to IPFS CID is kept in memory, so Fetch only finds
// content stored by this process.
type IPFSBackend struct {
	shell       *shell.Shell
	apiAddr     string
	log         *slog.Logger
	locationURI string

	mu   sync.RWMutex
	cids map[string]string
}

func NewIPFSBackend(host, port string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	if host == "" {
		return nil, fmt.Errorf("ipfs host is required")
	}
	apiAddr := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShellWithClient(apiAddr, &http.Client{Timeout: timeout})

	return &IPFSBackend{
		shell:       sh,
		apiAddr:     apiAddr,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiAddr, timeout),
		cids:        make(map[string]string),
	}, nil
}

// Fetch returns ErrContentNotFound for content this backend has not stored.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	cid, ok := b.CID(id, contentType)
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}

	reader, err := b.shell.Cat("/ipfs/" + cid)
	if err != nil {
		b.log.Error("Failed to fetch data from IPFS",
			slog.String("cid", cid),
			slog.String("content_id", id.String()),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}
	return data, nil
}

// Store adds and pins data.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	cid, err := b.shell.Add(bytes.NewReader(data), shell.Pin(true))
	if err != nil {
		return id, fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	b.mu.Lock()
	b.cids[cidKey(id, contentType)] = cid
	b.mu.Unlock()

	b.log.Debug("Stored content in IPFS",
		slog.String("cid", cid),
		slog.String("content_id", id.String()),
		slog.String("content_type", contentType.String()))

	return id, nil
}

// CID returns the IPFS CID of previously stored content.
func (b *IPFSBackend) CID(id interfaces.ContentID, contentType interfaces.ContentType) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cid, ok := b.cids[cidKey(id, contentType)]
	return cid, ok
}

func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s", b.apiAddr)
}

func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func cidKey(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return contentType.String() + "/" + id.String()
}

package issuer

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/key-issuer/cryptoutils"
	"github.com/ruteri/key-issuer/interfaces"
	"github.com/ruteri/key-issuer/metrics"
)

const archiveTimeout = 30 * time.Second

// IssuanceRecord describes one issued certificate in the archive.
type IssuanceRecord struct {
	Identity      string    `json:"identity"`
	SerialNumber  string    `json:"serial_number"`
	Issuer        string    `json:"issuer"`
	NotBefore     time.Time `json:"not_before"`
	NotAfter      time.Time `json:"not_after"`
	CertificateID string    `json:"certificate_id"`
}

// NewGenerator returns the generation pipeline: key pair, certificate, PEM.
// archive and m may be nil; archiving failures never fail the generation.
func NewGenerator(ca interfaces.CertificateAuthority, archive interfaces.StorageBackend, log *slog.Logger, m *metrics.Metrics) GenerateFunc {
	if m == nil {
		m = metrics.NewMetrics("")
	}
	return func(identity interfaces.Identity) interfaces.Outcome {
		privateKey, err := ca.GenerateKeyPair()
		if err != nil {
			return interfaces.Failed(fmt.Errorf("generating key pair: %w", err))
		}

		cert, err := ca.SignCertificate(identity, privateKey.Public())
		if err != nil {
			return interfaces.Failed(fmt.Errorf("signing certificate: %w", err))
		}

		keyPEM, err := cryptoutils.PrivateKeyToPEM(privateKey)
		if err != nil {
			return interfaces.Failed(fmt.Errorf("encoding private key: %w", err))
		}

		certPEM, err := cryptoutils.CertificateToPEM(cert)
		if err != nil {
			return interfaces.Failed(fmt.Errorf("encoding certificate: %w", err))
		}

		if archive != nil {
			if err := archiveCertificate(archive, identity, cert, certPEM); err != nil {
				m.ArchiveFailures.Inc()
				log.Warn("Failed to archive issued certificate", "identity", identity, "backend", archive.Name(), "err", err)
			}
		}

		return interfaces.Succeeded(&interfaces.KeyMaterial{
			PrivateKeyPEM:  keyPEM,
			CertificatePEM: certPEM,
		})
	}
}

func archiveCertificate(archive interfaces.StorageBackend, identity interfaces.Identity, cert *x509.Certificate, certPEM []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	certID, err := archive.Store(ctx, certPEM, interfaces.CertificateType)
	if err != nil {
		return fmt.Errorf("storing certificate: %w", err)
	}

	record, err := json.Marshal(IssuanceRecord{
		Identity:      identity.String(),
		SerialNumber:  hex.EncodeToString(cert.SerialNumber.Bytes()),
		Issuer:        cert.Issuer.String(),
		NotBefore:     cert.NotBefore,
		NotAfter:      cert.NotAfter,
		CertificateID: certID.String(),
	})
	if err != nil {
		return fmt.Errorf("encoding issuance record: %w", err)
	}

	if _, err := archive.Store(ctx, record, interfaces.IssuanceRecordType); err != nil {
		return fmt.Errorf("storing issuance record: %w", err)
	}
	return nil
}

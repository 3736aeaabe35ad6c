// Package interfaces defines the core types and contracts of the key issuer,
// separating interface definitions from their implementations.
//
// # Issuance Types
//
//   - Identity: the requested certificate subject, also used as the result cache key
//   - KeyMaterial: a PEM encoded private key and the matching signed certificate
//   - Outcome: the immutable result of one generation, either KeyMaterial or a failure
//
// # Certificate Authority
//
// CertificateAuthority generates RSA key pairs and signs certificates for them
// with the issuer key. Implementations must be safe for concurrent use, they are
// called from every worker of the pool.
//
// # Storage Interfaces
//
// StorageBackend provides content-addressed storage used as an archive of issued
// certificates (file, S3, IPFS, Vault). Private keys are never archived.
package interfaces

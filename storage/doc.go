// Package storage provides the archive of issued certificates, a
// content-addressed store with pluggable backends:
//
//	- File system storage for single hosts and tests
//	- S3-compatible object storage
//	- IPFS, pinned through a node's HTTP API
//	- HashiCorp Vault KV v2
//
// Content is identified by the SHA-256 of the data. Certificates and issuance
// records are kept in separate namespaces. Private keys are never archived, and
// the archive is write-mostly: the server does not read it back at startup.
//
// # Storage URI Format
//
// Backends are configured with URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
//	- file:///var/lib/key-issuer/archive
//	- s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=eu-west-1&endpoint=minio.local:9000
//	- ipfs://localhost:5001/?timeout=30s
//	- vault://[TOKEN@]vault.example.com:8200/secret/key-issuer?tls=true
//
// Several URIs are combined with NewMultiStorageBackend, which stores to every
// available backend and fetches from the first one holding the content.
package storage

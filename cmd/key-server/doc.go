/*
key-server issues RSA private keys and X.509 certificates to TCP clients.

A client sends its identity as printable ASCII followed by a zero byte and
receives the PEM encoded private key and certificate, each prefixed with a
big-endian 32-bit length. Concurrent requests for the same identity share one
generation, and an identity keeps its key material for the life of the process.

Usage:

	key-server --port 9000 --threads 4 --issuer "CN=KeyIssuer,O=NSU" --key issuer.pem

Issued certificates can be archived with one or more --archive locations:

	--archive file:///var/lib/key-issuer
	--archive "s3://bucket/issued/?region=eu-west-1"
	--archive "vault://TOKEN@vault:8200/secret/key-issuer"
	--archive ipfs://localhost:5001/

Invalid flags exit with status 2, startup failures with status 1.
*/
package main

// Package cryptoutils implements the certificate authority of the key issuer
// together with the PEM helpers shared by the server and the client.
//
// # Authority
//
// Authority generates RSA key pairs (8192 bits unless configured otherwise) and
// signs certificates for them with the issuer key loaded at startup:
//
//	signer, err := cryptoutils.LoadPrivateKeyPEM("issuer.key")
//	ca, err := cryptoutils.NewAuthority("CN=KeyIssuer,O=NSU", signer)
//	key, err := ca.GenerateKeyPair()
//	cert, err := ca.SignCertificate("alice", key.Public())
//
// Issued certificates carry the requested identity as the only subject
// attribute (CN), a random 128-bit serial, SHA-256 signature and a validity
// that starts five minutes in the past.
//
// # Issuer Names
//
// ParseDistinguishedName accepts RFC 4514 strings. The encoded issuer name keeps
// the attribute order of the string, so "CN=KeyIssuer,O=NSU" encodes O before CN
// exactly like other X.500 implementations do.
//
// # Verification
//
// VerifyCertificate checks that a PEM private key matches a PEM certificate and
// that the certificate was issued for the expected common name. The client uses
// it to validate what it received before writing files.
package cryptoutils

// Package client is the blocking counterpart of the key server: it sends one
// identity, reads one response and stores the key and certificate PEM files.
package client

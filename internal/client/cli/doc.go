// Package cli provides the interactive memberauth command-line client.
//
// App wires the client configuration to a gRPC client and runs a small REPL
// with the commands join, login, refresh, whoami, logout and ping. Tokens
// live only in memory for the lifetime of the process.
package cli

// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the two execution modes (one-shot query
// compilation and the frontend server), decoupled from any specific
// entrypoint.
package app

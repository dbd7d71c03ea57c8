// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, relay client, delivery outbox and high-level
// services from a config.Config, exposing them via the Wire struct for
// commands to use. Nothing in the graph is a package-level singleton.
package app

// Command linkhaul is the operator CLI. Container and download commands open
// the configured database directly and run the orchestrators in-process, so
// they work whether or not linkhauld is running.
package main

// Package autodiscovery composes the discovery pipeline.
//
// A cycle runs the UDP broadcast scan, resolves each responding server's
// management API, filters candidates through the registry dedup rule, and
// registers survivors. Per-server failures are isolated and reported in the
// Result rather than aborting the cycle. Registration events flush as one
// batch with a single summary notification.
//
// AddManualDevice runs the same resolve/dedup/register pipeline for one
// user-supplied address and port, failing fast before any registration when
// the target does not answer its management API.
package autodiscovery

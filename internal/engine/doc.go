// Package engine drives the execute-or-cache-hit state machine over the
// content-addressed artifact store.
//
// An Engine owns a registry of executors and a store root. Execute resolves
// an executor by kind, fingerprints its input, and either returns the
// previously published artifact or materializes a new one: dependencies are
// mounted into a scratch workspace, the user function runs, and the scratch
// directory is atomically renamed into place. Between concurrent writers of
// one fingerprint exactly one rename wins; losers discard their scratch and
// reuse the winner's artifact.
//
// On cache hits the engine transparently repairs dependency mounts whose
// targets were pruned or whose declared config has drifted, without
// re-running the artifact's own function.
package engine

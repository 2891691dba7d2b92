// Package pool tracks the capacity and loaded model of every backend
// inference server and performs the atomic admission decision. It is
// structured into small files by concern:
//
//   - pool.go: Pool type, constructor, FindAndAcquire/Release and the
//     capacity broadcast.
//   - types.go: the per-server record and its read-only ServerStatus view.
//   - config.go: functional options and package defaults.
//   - errors.go: error values and helpers (ErrUnknownServer, manifest failures).
//   - manifest.go: ManifestSource and the HTTP /v1/models client.
//   - refresh.go: manifest fan-out and the periodic refresher.
//   - metrics.go: Prometheus collectors for slots and manifests.
//
// Every mutation of server state happens under a single mutex; none of the
// exported methods block apart from RefreshAllManifests and RunRefresher,
// which wait on the network without holding the lock.
//
// A server never receives a request for a different model while it still has
// active requests for its pinned model: switching models mid-stream would
// corrupt in-flight generations. A fully drained server may take any model.
package pool

// Package reconcile decides, per requested video, whether a new download job
// is needed or whether the video is already covered by an existing manual
// download record or by a file the external tool downloaded itself.
//
// Batches are processed sequentially and are not transactional as a whole.
// Each identifier's decision is independently idempotent, so a retried batch
// converges on the same records.
package reconcile

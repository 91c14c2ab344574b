// Package authdoc models the authenticator document a name owner publishes and the
// text-record value that points at it.
//
// # Architecture boundaries
//
// authdoc owns the wire format: JSON decoding, schema checks, and URL template
// expansion. It never performs network I/O; fetching a document over HTTP lives in
// package fetch.
//
// # What this package must NOT do
//
//   - Close the platform or connection enumerations. Unknown values decode and
//     round-trip unchanged.
//   - Import goNameAuth or any resolver package.
package authdoc

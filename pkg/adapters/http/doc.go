// Package http serves an arbor engine over HTTP with chi.
//
//	POST   /roots                         allocate a tenant root
//	POST   /roots/{root}/walkers/{type}   spawn a walker, ?entry=<id> to start elsewhere
//	GET    /roots/{root}/anchors/{id}     read an anchor record
//	DELETE /roots/{root}/anchors/{id}     destroy an anchor
//	GET    /health                        liveness
package http

// Package server exposes the cloner over HTTP.
//
// Routes:
//
//	GET  /api/health            liveness probe
//	POST /api/clone             clone one URL
//	GET  /api/history           recorded runs, newest first
//	GET  /api/history/{runID}   one recorded run
//	GET  /cloned_sites/*        the cloned files
//
// Clones of the same host are serialized because they share a site folder;
// clones of different hosts run in parallel.
package server

// Package model defines the core data structures used throughout webclone.
//
// This package contains the following main types:
//   - CloneJob: The state of one clone run, threaded through the pipeline
//   - AssetRecord: The outcome of downloading a single referenced asset
//   - CloneResult: The wire form of a finished job
//
// Models live in their own package so that the clone, pipeline, database,
// report and server packages can share them without import cycles.
package model

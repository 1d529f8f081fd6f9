// Package pipeline runs clone jobs.
//
// A clone is an ordered list of steps over one model.CloneJob: fetch the
// seed page, extract and rewrite references, persist assets, write the
// document, and optionally write a Markdown snapshot and run the enhancer.
// Each step moves the job to its state and records failures in the job
// instead of panicking or returning past the job boundary.
//
// Cloner assembles the steps for one seed URL, including the per-job HTTP
// session, privacy routing and site settings. BatchProcessor runs several
// seed URLs as independent jobs with errgroup.
package pipeline

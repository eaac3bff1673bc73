// Package deployer turns a SQL program and a Rust UDF file into a running
// pipeline.
//
// DeployAndStart performs, in order: read the query file, read the UDF
// file, write "Starting pipeline" to the output, create-or-replace the
// pipeline, start it. A missing file fails before any remote call. A
// failed create-or-replace is never followed by a start, and a failed
// start leaves the created pipeline in place.
package deployer

// Package controlplane is a client for the pipeline management REST API
// (/v0/pipelines/{name}): create-or-replace, get, start, stop, delete,
// and polling waits on compilation and deployment state.
//
// Failed requests surface the transport *httpclient.Error, upgraded to an
// *APIError when the service sent a structured error body.
package controlplane

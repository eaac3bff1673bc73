// Package httpclient is the HTTP transport used to talk to the pipeline
// control plane.
//
// An Adapter joins request paths onto a base URL, encodes JSON bodies,
// applies default headers and authentication, and classifies non-2xx
// answers into *Error values (IsNotFound, IsConflict, IsServerError, ...).
//
//	a, err := httpclient.New(httpclient.Config{
//	    BaseURL: "http://localhost:28080",
//	    Auth:    httpclient.BearerAuth(apiKey),
//	})
//
//	resp, err := httpclient.Get[Pipeline](a, ctx, "/v0/pipelines/otel")
//
// A zero Timeout means no client-side deadline. Retry is off unless
// Config.Retry is set, and even then only idempotent methods (GET, HEAD,
// PUT, DELETE, OPTIONS) are repeated; a POST is always sent exactly once.
package httpclient

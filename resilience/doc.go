// Package resilience retries idempotent operations with exponential backoff.
//
// pipedeploy never retries by default. When retries are configured the HTTP
// transport wraps only idempotent requests, so a start command is sent at most
// once per invocation:
//
//	cfg := resilience.DefaultRetryConfig()
//	cfg.RetryIf = httpclient.IsRetryable
//	p, err := resilience.Retry(ctx, cfg, func() (*Pipeline, error) {
//	    return client.Get(ctx, "otel")
//	})
package resilience

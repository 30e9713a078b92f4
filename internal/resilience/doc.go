// Package resilience groups the fault tolerance building blocks used by the API client.
//
// The subpackages provide:
//   - circuitbreaker: a gobreaker wrapper that stops calling an unhealthy API
//   - retry: exponential backoff with jitter that honors Retry-After hints
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.CloudAPIConfig())
//	err := retry.WithBackoff(ctx, retry.CloudAPIConfig(), func() error {
//	    _, err := cb.Execute(func() (interface{}, error) {
//	        return nil, callAPI(ctx)
//	    })
//	    return err
//	})
package resilience

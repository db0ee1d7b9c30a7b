// Package resilience groups the fault-tolerance helpers used by outbound
// adapters: circuit breakers (package circuitbreaker) and retry with
// exponential backoff (package retry).
//
// Adapters combine both, breaker outermost, so one logical call counts once
// against the breaker however many retries it took:
//
//	out, err := circuitbreaker.Run(cb, func() ([]byte, error) {
//	    var body []byte
//	    err := retry.WithBackoff(ctx, retry.SearchConfig(), func() error {
//	        var err error
//	        body, err = doRequest(ctx)
//	        return err
//	    })
//	    return body, err
//	})
package resilience

// Package resource shares memory, concurrency and bandwidth limits between
// the indexes opened with the same options.
//
// Memory reservations never block; they fail with ErrMemoryLimitExceeded.
// Search slots are a weighted semaphore. Stream reads wait on a token bucket
// sized to the configured bytes per second.
//
//	rc := resource.NewController(resource.Config{MaxConcurrentSearches: 8})
//	if err := rc.AcquireSearch(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseSearch()
//
// A nil *Controller imposes no limits.
package resource

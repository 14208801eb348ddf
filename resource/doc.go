// Package resource governs what the feature loader may pull into a cache.
//
// A Controller tracks three things:
//
//   - Memory: bytes held by the cache. The cache records every insert with
//     Reserve and every removal with Release. The loader calls Admit before
//     fetching, so a configured limit refuses new features instead of
//     evicting old ones.
//   - Fetch concurrency: a weighted semaphore bounding in-flight fetches.
//   - IO: a token bucket bounding the byte rate read from sources.
//
// All methods are safe for concurrent use and are no-ops on a nil Controller.
package resource

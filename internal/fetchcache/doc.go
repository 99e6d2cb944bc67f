// Package fetchcache keeps recently fetched transcripts so that repeat work on
// the same source does not hit the upstream provider again.
//
// Entries expire after a TTL (24h by default). FileCache persists to a JSON
// file and suits a single host; RedisCache shares entries between hosts under
// transcript:<source id> keys. Cache failures are reported but callers treat
// them as misses.
package fetchcache

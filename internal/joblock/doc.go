// Package joblock keeps a job name to one active run across processes.
//
// FileLocker uses advisory flocks in the configured lock directory and
// suits a single host. RedisLocker stores a token under a TTL key so several
// hosts sharing one library can coordinate.
package joblock

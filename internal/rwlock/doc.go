// Package rwlock implements the reader/writer gate that serializes
// exclusive-network probe invocations against all concurrently running
// configuration groups while letting shared-network invocations overlap.
package rwlock

// Package registry enumerates the closed Method and Operation variant sets
// and expands them into the configuration matrix the scheduler runs.
package registry

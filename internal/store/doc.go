// Package store keeps finished pipeline runs in memory for the HTTP API.
package store

// Package services sits between the HTTP handlers and the pipeline.
//
// RunService runs workbooks on request, keeps every result in the run
// store and persists accepted results through the exporter. HealthService
// reports process health for the health endpoint.
package services

// Package http implements the HTTP handlers of the pipeline API.
//
// Handlers stay thin: they decode and validate the request, call the run
// service and render the response. Every failure is rendered as RFC 7807
// problem details by the shared error handler, so a refused persist comes
// back as 409 with the run ID attached and a failed run keeps the pipeline
// error type.
//
// Routes mounted under /api/v1:
//
//	POST   /runs                 run a workbook, optionally persisting it
//	GET    /runs                 list runs (?status=, ?limit=)
//	GET    /runs/{id}            run summary, stages and unit ledger
//	GET    /runs/{id}/report     validation report
//	GET    /runs/{id}/records    records (?dimension_type=, ?metric_type=, ?period=)
//	DELETE /runs/{id}            forget a run
//	GET    /schema               data dictionary (?format=yaml)
//	GET    /health               service health
package http

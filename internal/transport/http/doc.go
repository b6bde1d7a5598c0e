// Package http implements the HTTP handlers of the reconciliation service.
// Handlers stay thin: they parse and validate the request, delegate to the
// services package and render JSON or RFC 7807 problem documents.
//
// # Endpoints
//
//	POST   /api/v1/sheets               list the worksheets of an uploaded workbook
//	POST   /api/v1/reports              run a reconciliation on two uploaded ledgers
//	GET    /api/v1/reports/{id}/{kind}  download the complete or trimmed workbook
//	DELETE /api/v1/reports/{id}         discard a report and its files
//	GET    /healthz                     service health
//
// Errors are returned through errors.ErrorHandler so every failure carries
// the request ID as trace_id.
package http

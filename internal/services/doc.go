// Package services implements the application layer shared by the CLI and the HTTP
// service.
//
// ReportService runs one reconciliation end to end: it reads both ledgers, derives
// the margin ledger, builds the report views and writes the workbooks. ArtifactStore
// keeps the workbooks generated for HTTP callers in a temporary directory until they
// expire or are deleted. HealthService reports liveness for the HTTP service.
//
// Services take their logger by injection and never touch global state.
//
//	svc := services.NewReportService(cfg, metrics, logger)
//	outcome, err := svc.Generate(ctx, services.ReportRequest{
//	    Primary:   services.Source{Path: "sales.xlsx", Sheet: "Sheet1"},
//	    Secondary: services.Source{Path: "discounts.xlsx"},
//	}, exporter.Destination{CompletePath: "chassis.xlsx", TrimmedPath: "trim_chassis.xlsx"})
package services

// Package config loads marginreco configuration.
//
// # Configuration Sources
//
// Values are layered, later sources overriding earlier ones:
//
//	1. Built-in defaults (Default)
//	2. A .env file, loaded into the process environment when present
//	3. A YAML file (marginreco.yaml, or the path passed to Load)
//	4. Environment variables prefixed MARGINRECO_
//
// The merged result is validated before it is returned.
//
// # Environment Variables
//
//	MARGINRECO_LOGGING_LEVEL=debug
//	MARGINRECO_INGEST_HEADER_ROWS=6
//	MARGINRECO_CLASSIFICATION_ALLOW_OVERLAP=false
//	MARGINRECO_RECONCILE_LAST_GROUP_TOTAL=false
//	MARGINRECO_OUTPUT_DIR=out
//	MARGINRECO_SERVER_PORT=8080
//	MARGINRECO_TELEMETRY_TRACE_EXPORTER=stdout
//
// Classification rules are only read from YAML:
//
//	classification:
//	  rules:
//	    - category: DealerShare
//	      match: contains_fold
//	      tokens: [dlr, dealer]
package config

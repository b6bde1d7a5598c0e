// Package shared holds helpers used by the tests of several packages.
// testutil captures slog output and builds ledger workbooks with excelize.
package shared

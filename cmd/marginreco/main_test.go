package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/shared/testutil"
)

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no ledgers", nil, errUsage},
		{"missing secondary", []string{"-primary", "sales.xlsx"}, errUsage},
		{"stray argument", []string{"-primary", "a.xlsx", "-secondary", "b.xlsx", "extra"}, errUsage},
		{"help", []string{"-h"}, flag.ErrHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRunListSheets(t *testing.T) {
	primary, _ := testutil.WriteSampleLedgers(t, t.TempDir())

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-list-sheets", primary}, &stdout, &stderr))
	assert.Equal(t, testutil.SalesSheet+"\n", stdout.String())
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	primary, secondary := testutil.WriteSampleLedgers(t, dir)
	out := filepath.Join(dir, "out", "march.xlsx")
	trimOut := filepath.Join(dir, "out", "march final.xlsx")
	metrics := filepath.Join(dir, "run.prom")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-primary", primary,
		"-secondary", secondary,
		"-secondary-sheet", testutil.DiscountsSheet,
		"-out", out,
		"-trim-out", trimOut,
		"-metrics-file", metrics,
		"-last-group-total",
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.FileExists(t, out)
	assert.FileExists(t, trimOut)
	assert.Contains(t, stdout.String(), "Total Margin  280000")
	assert.Contains(t, stdout.String(), "Difference    0")
	assert.Contains(t, stdout.String(), "Dropped       1")
	assert.Contains(t, stderr.String(), "report run completed", "logs go to stderr")

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "marginreco_runs_total")
}

func TestRunFailureStillWritesMetrics(t *testing.T) {
	dir := t.TempDir()
	primary, _ := testutil.WriteSampleLedgers(t, dir)
	unmatched := testutil.WriteWorkbook(t, dir, "unmatched.xlsx", testutil.Sheet{
		Name: testutil.DiscountsSheet,
		Rows: [][]interface{}{{"Chassis_No", "Total Discount"}, {"NOPE", 1}},
	})
	metrics := filepath.Join(dir, "run.prom")
	out := filepath.Join(dir, "chassis.xlsx")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-primary", primary,
		"-secondary", unmatched,
		"-out", out,
		"-trim-out", filepath.Join(dir, "trim_chassis.xlsx"),
		"-metrics-file", metrics,
	}, &stdout, &stderr)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeJoinIntegrity))
	assert.Empty(t, stdout.String())
	assert.NoFileExists(t, out)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `outcome="failure"`)
}

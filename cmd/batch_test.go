//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/nip-resolver/internal/batch"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/store"
)

func writeLeadsXLSX(t *testing.T, dir string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(dir, "leads.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// setBatchFlags points the batch command at input and output for one test.
func setBatchFlags(t *testing.T, input, output string, save bool) {
	t.Helper()
	setFlag(t, &batchInput, input)
	setFlag(t, &batchOutput, output)
	setFlag(t, &batchColumn, 1)
	setFlag(t, &batchSheet, "")
	setFlag(t, &batchHeaderRows, 1)
	setFlag(t, &batchLimit, 0)
	setFlag(t, &batchSave, save)
}

func TestBatchCmd_RunE_WritesResults(t *testing.T) {
	dir := offlineConfig(t)
	input := writeLeadsXLSX(t, dir, [][]string{
		{"ID", "Lead"},
		{"1", "ProBody Gdynia"},
		{"2", ""},
	})
	output := filepath.Join(dir, "results.xlsx")
	setBatchFlags(t, input, output, false)

	_, err := runCmd(t, batchCmd)
	require.NoError(t, err)

	got, err := batch.ReadXLSX(output, batch.ReadOptions{Column: 1, HeaderRows: 1})
	require.NoError(t, err)
	require.Len(t, got.Header, 1)
	assert.Equal(t, append([]string{"ID", "Lead"}, batch.ResultColumns...), got.Header[0])

	require.Len(t, got.Rows, 2)
	first := got.Rows[0].Cells
	require.Len(t, first, 2+len(batch.ResultColumns))
	assert.Equal(t, "ProBody Gdynia", first[1])
	assert.Empty(t, first[2], "no NIP expected offline")
	_, err = uuid.Parse(first[8])
	assert.NoError(t, err, "trace id column")

	// blank lead rows keep their place but carry no trace
	for i := 2; i < 2+len(batch.ResultColumns); i++ {
		assert.Empty(t, cellAt(got.Rows[1].Cells, i))
	}
}

func TestBatchCmd_RunE_SavePersistsTraces(t *testing.T) {
	dir := offlineConfig(t)
	input := writeLeadsXLSX(t, dir, [][]string{
		{"ID", "Lead"},
		{"1", "ProBody Gdynia"},
		{"2", "Uśmiech Gdańsk"},
	})
	setBatchFlags(t, input, filepath.Join(dir, "results.xlsx"), true)

	_, err := runCmd(t, batchCmd)
	require.NoError(t, err)

	ctx := context.Background()
	st, err := initStore(ctx, cfg.Store)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	list, err := st.ListTraces(ctx, store.TraceFilter{Outcome: model.OutcomeNotFound})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestBatchCmd_RunE_Limit(t *testing.T) {
	dir := offlineConfig(t)
	input := writeLeadsXLSX(t, dir, [][]string{
		{"ID", "Lead"},
		{"1", "ProBody Gdynia"},
		{"2", "Uśmiech Gdańsk"},
	})
	output := filepath.Join(dir, "results.xlsx")
	setBatchFlags(t, input, output, false)
	setFlag(t, &batchLimit, 1)

	_, err := runCmd(t, batchCmd)
	require.NoError(t, err)

	got, err := batch.ReadXLSX(output, batch.ReadOptions{Column: 1, HeaderRows: 1})
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	assert.NotEmpty(t, cellAt(got.Rows[0].Cells, 8))
	assert.Empty(t, cellAt(got.Rows[1].Cells, 8))
}

func TestBatchCmd_RunE_MissingInput(t *testing.T) {
	dir := offlineConfig(t)
	setBatchFlags(t, filepath.Join(dir, "nope.xlsx"), filepath.Join(dir, "out.xlsx"), false)

	_, err := runCmd(t, batchCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch: open")
}

func TestBatchCmd_RunE_ConcurrencyOutOfRange(t *testing.T) {
	dir := offlineConfig(t)
	cfg.Batch.Concurrency = 0
	setBatchFlags(t, filepath.Join(dir, "leads.xlsx"), filepath.Join(dir, "out.xlsx"), false)

	_, err := runCmd(t, batchCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 50")
}

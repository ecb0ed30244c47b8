package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Registry cache ---

func TestSQLite_RegistryCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := model.RegistryRecord{Found: true, NIP: "8941864949", Name: "ALDENT SP. Z O.O.", City: "Wrocław", Street: "ul. Krucza"}
	require.NoError(t, st.SetCachedRegistry(ctx, rec, time.Hour))

	got, err := st.GetCachedRegistry(ctx, "8941864949")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)
}

func TestSQLite_RegistryCache_NegativeAnswerCached(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedRegistry(ctx, model.RegistryRecord{NIP: "5260250995"}, time.Hour))

	got, err := st.GetCachedRegistry(ctx, "5260250995")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Found)
}

func TestSQLite_RegistryCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetCachedRegistry(context.Background(), "1234563218")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_RegistryCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedRegistry(ctx, model.RegistryRecord{NIP: "8941864949", Found: true}, -time.Hour))

	got, err := st.GetCachedRegistry(ctx, "8941864949")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.DeleteExpiredRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_RegistryCache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedRegistry(ctx, model.RegistryRecord{NIP: "8941864949", Name: "old"}, time.Hour))
	require.NoError(t, st.SetCachedRegistry(ctx, model.RegistryRecord{NIP: "8941864949", Name: "new"}, time.Hour))

	got, err := st.GetCachedRegistry(ctx, "8941864949")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
}

// --- Traces ---

func sampleTrace(raw, nip string, outcome model.TraceOutcome) *model.Trace {
	tr := model.NewTrace(raw)
	c := evidence.NewCandidate(nip)
	c.Add(evidence.New(evidence.ChecksumOK, "checksum", nip, ""))
	c.Add(evidence.New(evidence.RegistryHit, "registry", nip, ""))
	c.Add(evidence.New(evidence.RegistryNameMatch, "registry", "Aldent", ""))
	c.Decide()
	tr.AddCandidate(c)
	tr.AddStep(model.Step{Name: model.StepParse, Method: "regex", CostUSD: 0.001})
	tr.AddStep(model.Step{Name: model.StepCheckID, CandidatesFound: 1, Best: nip, CostUSD: 0.001})
	tr.Finish(c, outcome)
	return tr
}

func TestSQLite_Trace_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tr := sampleTrace("Aldent NIP 894-186-49-49", "8941864949", model.OutcomeResolved)

	require.NoError(t, st.SaveTrace(ctx, tr))

	got, err := st.GetTrace(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.ID)
	assert.Equal(t, model.OutcomeResolved, got.Outcome)
	assert.Equal(t, []string{"parse", "check_id"}, got.StepNames())
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, evidence.Accept, got.Candidates[0].Decision)
	assert.Equal(t, evidence.RegistryHit, got.Candidates[0].Evidence[1].Kind)
	assert.InDelta(t, 0.002, got.CostUSD, 1e-9)
}

func TestSQLite_Trace_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetTrace(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trace not found")
	assert.True(t, eris.Is(err, ErrTraceNotFound))
}

func TestSQLite_Trace_List(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	resolved := sampleTrace("Aldent", "8941864949", model.OutcomeResolved)
	suspect := sampleTrace("Medicus", "5260250995", model.OutcomeSuspect)
	suspect.StartedAt = resolved.StartedAt.Add(time.Second)
	require.NoError(t, st.SaveTrace(ctx, resolved))
	require.NoError(t, st.SaveTrace(ctx, suspect))

	all, err := st.ListTraces(ctx, TraceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, suspect.ID, all[0].ID, "newest first")

	onlySuspect, err := st.ListTraces(ctx, TraceFilter{Outcome: model.OutcomeSuspect})
	require.NoError(t, err)
	require.Len(t, onlySuspect, 1)
	assert.Equal(t, "5260250995", onlySuspect[0].NIP)

	byNIP, err := st.ListTraces(ctx, TraceFilter{NIP: "8941864949", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byNIP, 1)
	assert.Equal(t, resolved.ID, byNIP[0].ID)
}

func TestSQLite_Trace_Resave(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tr := sampleTrace("Aldent", "8941864949", model.OutcomeSuspect)
	require.NoError(t, st.SaveTrace(ctx, tr))

	tr.Outcome = model.OutcomeResolved
	require.NoError(t, st.SaveTrace(ctx, tr))

	list, err := st.ListTraces(ctx, TraceFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.OutcomeResolved, list[0].Outcome)
}

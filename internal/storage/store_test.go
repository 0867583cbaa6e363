package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"genalg/internal/model"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.RunRecord{
		{VersionedRecord: CurrentVersion(), ID: "run-b", Problem: "onemax", PopulationSize: 4, CreatedAt: base.Add(time.Minute)},
		{VersionedRecord: CurrentVersion(), ID: "run-a", Problem: "sphere", PopulationSize: 8, CreatedAt: base},
	}
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	got, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if got.Problem != "sphere" || got.PopulationSize != 8 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "run-a" || listed[1].ID != "run-b" {
		t.Fatalf("expected runs ordered by creation time, got %+v", listed)
	}

	for _, step := range []int{2, 5, 3} {
		checkpoint := model.Checkpoint{
			VersionedRecord: CurrentVersion(),
			RunID:           "run-a",
			Step:            step,
			Statistics:      model.NewStatistics(),
			Population: []model.ChromosomeRecord{
				{ID: "c0", Fitness: float64(step), Payload: json.RawMessage(`{"genes":[1,2]}`)},
			},
		}
		if err := store.SaveCheckpoint(ctx, checkpoint); err != nil {
			t.Fatalf("save checkpoint %d: %v", step, err)
		}
	}

	latest, ok, err := store.LatestCheckpoint(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("latest checkpoint: ok=%t err=%v", ok, err)
	}
	if latest.Step != 5 || latest.Population[0].Fitness != 5 {
		t.Fatalf("unexpected latest checkpoint: step=%d population=%+v", latest.Step, latest.Population)
	}

	second, ok, err := store.GetCheckpoint(ctx, "run-a", 3)
	if err != nil || !ok {
		t.Fatalf("get checkpoint: ok=%t err=%v", ok, err)
	}
	if string(second.Population[0].Payload) != `{"genes":[1,2]}` {
		t.Fatalf("unexpected payload: %s", second.Population[0].Payload)
	}
	if _, ok, err := store.GetCheckpoint(ctx, "run-a", 4); err != nil || ok {
		t.Fatalf("expected missing checkpoint, ok=%t err=%v", ok, err)
	}
	if _, ok, err := store.LatestCheckpoint(ctx, "run-b"); err != nil || ok {
		t.Fatalf("expected no checkpoint for run-b, ok=%t err=%v", ok, err)
	}

	for _, runID := range []string{"run-a", "no-such-run"} {
		history, ok, err := store.GetGenerationHistory(ctx, runID)
		if err != nil || ok || len(history) != 0 {
			t.Fatalf("expected no history for %s, ok=%t len=%d err=%v", runID, ok, len(history), err)
		}
	}
	for step := 1; step <= 4; step++ {
		record := model.GenerationRecord{
			RunID:      "run-a",
			Statistics: model.Statistics{Step: step, CurrentMax: float64(step)},
			FittestID:  "c0",
		}
		if err := store.AppendGeneration(ctx, record); err != nil {
			t.Fatalf("append generation %d: %v", step, err)
		}
	}
	// A resumed run rewrites history from step 3 onward.
	if err := store.AppendGeneration(ctx, model.GenerationRecord{
		RunID:      "run-a",
		Statistics: model.Statistics{Step: 3, CurrentMax: 30},
	}); err != nil {
		t.Fatalf("append resumed generation: %v", err)
	}

	history, ok, err := store.GetGenerationHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 generations after rewrite, got %d", len(history))
	}
	if history[2].Statistics.Step != 3 || history[2].Statistics.CurrentMax != 30 {
		t.Fatalf("unexpected rewritten generation: %+v", history[2].Statistics)
	}
}

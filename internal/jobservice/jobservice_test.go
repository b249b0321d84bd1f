package jobservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/contract"
	"github.com/fairlie/keel/internal/generator"
	"github.com/fairlie/keel/internal/jobstore"
	"github.com/fairlie/keel/internal/models"
	"github.com/fairlie/keel/internal/scanner"
	"github.com/fairlie/keel/internal/sse"
	"github.com/fairlie/keel/internal/testutil"
	"github.com/fairlie/keel/internal/workspace"
)

func testService(t *testing.T, broker *sse.Broker) (*Service, *jobstore.DB, *workspace.FS) {
	t.Helper()
	db := testutil.TestDB(t)
	_, ws := testutil.TestWorkspaces(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(db, ws, broker, scanner.WalkerConfig{Logger: logger}, logger)
	return svc, db, ws
}

// hybridTree materializes a small Next.js project with two entity
// documents: Recipe carries an array-of-objects field and should land
// in mongo under the default strategy, Ingredient is a flat key-map
// and should land in postgres.
func hybridTree(t *testing.T) string {
	t.Helper()
	return testutil.SourceTree(t, map[string]string{
		"package.json": `{"name":"demo","dependencies":{"next":"14.2.3","react":"18.3.1"}}`,
		"src/entities/recipe.json": `{
  "name": "Recipe",
  "fields": [
    {"name": "id", "type": "string", "required": true},
    {"name": "title", "type": "string", "required": true},
    {"name": "steps", "type": "array", "items": {"type": "object", "properties": {"text": {"type": "string"}}}}
  ]
}`,
		"src/entities/ingredient.json": `{"id":"string","name":"string","quantity":"number"}`,
		"src/lib/api.ts":               "export async function listRecipes() {\n  return fetch(\"/api/recipes\");\n}\n",
	})
}

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestRunJobHybridPipeline(t *testing.T) {
	svc, _, ws := testService(t, nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobParams{
		SourcePath:    hybridTree(t),
		SourceRepoURL: "https://github.com/acme/demo",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != models.StatusQueued {
		t.Fatalf("new job status = %s, want QUEUED", job.Status)
	}
	if job.DBStack != contract.ModeHybrid {
		t.Fatalf("default db stack = %q, want hybrid", job.DBStack)
	}

	if err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	got, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.StatusDone {
		t.Fatalf("status = %s (error %q), want DONE", got.Status, got.Error)
	}
	if got.Stage != models.StageGenerate {
		t.Errorf("final stage = %s, want %s", got.Stage, models.StageGenerate)
	}

	data, err := ws.ReadArtifact(job.ID, ArtifactUIContract)
	if err != nil {
		t.Fatalf("read contract: %v", err)
	}
	var c contract.UIContract
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("decode contract: %v", err)
	}
	if c.SourceRepoURL != "https://github.com/acme/demo" {
		t.Errorf("source_repo_url = %q", c.SourceRepoURL)
	}
	if c.Framework.Name != "nextjs" || c.Framework.VersionHint != "14.2.3" {
		t.Errorf("framework = %+v, want nextjs 14.2.3", c.Framework)
	}
	if len(c.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(c.Entities))
	}
	if c.EntityDetection.FilesParsed != 2 || len(c.EntityDetection.FilesFailed) != 0 {
		t.Errorf("detection = %+v", c.EntityDetection)
	}
	if len(c.EndpointsUsed) != 1 || c.EndpointsUsed[0].PathHint != "/api/recipes" {
		t.Errorf("endpoints = %+v, want one GET /api/recipes", c.EndpointsUsed)
	}

	data, err = ws.ReadArtifact(job.ID, ArtifactStoragePlan)
	if err != nil {
		t.Fatalf("read plan: %v", err)
	}
	var plan contract.StoragePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Mode != contract.ModeHybrid {
		t.Errorf("plan mode = %q", plan.Mode)
	}
	stores := map[string]string{}
	for _, e := range plan.Entities {
		stores[e.Name] = e.Store
	}
	if stores["Recipe"] != contract.StoreMongo {
		t.Errorf("Recipe store = %q, want mongo", stores["Recipe"])
	}
	if stores["Ingredient"] != contract.StorePostgres {
		t.Errorf("Ingredient store = %q, want postgres", stores["Ingredient"])
	}

	arts, err := svc.ListArtifacts(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	names := map[string]bool{}
	for _, a := range arts {
		names[a.Name] = true
	}
	for _, want := range []string{
		ArtifactUIContract,
		ArtifactStoragePlan,
		generator.ArtifactSQLSchema,
		generator.ArtifactMongoSchemas,
		generator.ArtifactMongoCollections,
		generator.ArtifactOverview,
	} {
		if !names[want] {
			t.Errorf("artifact %s missing from %v", want, names)
		}
	}

	sqlData, info, err := svc.ReadArtifact(ctx, job.ID, generator.ArtifactSQLSchema)
	if err != nil {
		t.Fatalf("ReadArtifact sql: %v", err)
	}
	if info.Name != generator.ArtifactSQLSchema || info.Checksum == "" || info.Size != int64(len(sqlData)) {
		t.Errorf("artifact info = %+v", info)
	}
	sql := string(sqlData)
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS ingredient (") {
		t.Errorf("sql missing ingredient table:\n%s", sql)
	}
	if strings.Contains(sql, "recipe") {
		t.Errorf("mongo-routed entity leaked into sql:\n%s", sql)
	}

	mongoData, _, err := svc.ReadArtifact(ctx, job.ID, generator.ArtifactMongoSchemas)
	if err != nil {
		t.Fatalf("ReadArtifact mongo: %v", err)
	}
	if !strings.Contains(string(mongoData), `"recipes"`) {
		t.Errorf("mongo schemas missing recipes collection:\n%s", mongoData)
	}
	if strings.Contains(string(mongoData), `"ingredients"`) {
		t.Errorf("postgres-routed entity leaked into mongo schemas:\n%s", mongoData)
	}
}

func TestRunJobEmptyTreeFailsIntake(t *testing.T) {
	svc, _, ws := testService(t, nil)
	ctx := context.Background()

	dir := testutil.SourceTree(t, map[string]string{"README.md": "# nothing here\n"})
	job, err := svc.CreateJob(ctx, CreateJobParams{SourcePath: dir})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	err = svc.RunJob(ctx, job.ID)
	if err == nil {
		t.Fatal("RunJob on empty tree should fail")
	}
	if !errors.Is(err, apperr.ErrNoFindings) {
		t.Fatalf("err = %v, want ErrNoFindings", err)
	}

	got, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.Stage != models.StageIntake {
		t.Errorf("stage = %s, want %s", got.Stage, models.StageIntake)
	}
	if !strings.Contains(got.Error, "no entities or endpoints found") {
		t.Errorf("error = %q", got.Error)
	}

	// The contract is still written so callers can see what the scan
	// did and did not find.
	data, err := ws.ReadArtifact(job.ID, ArtifactUIContract)
	if err != nil {
		t.Fatalf("contract should exist even on a failed intake: %v", err)
	}
	var c contract.UIContract
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("decode contract: %v", err)
	}
	if len(c.Notes) == 0 {
		t.Error("contract notes should explain the empty scan")
	}

	if _, err := ws.ReadArtifact(job.ID, ArtifactStoragePlan); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("plan artifact after failed intake: err = %v, want ErrNotFound", err)
	}
}

func TestRunJobOverridePreferences(t *testing.T) {
	svc, _, ws := testService(t, nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobParams{
		SourcePath: hybridTree(t),
		Preferences: models.DBPreferences{
			MongoEntities:    []string{"Ingredient"},
			PostgresEntities: []string{"Recipe"},
		},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	data, err := ws.ReadArtifact(job.ID, ArtifactStoragePlan)
	if err != nil {
		t.Fatalf("read plan: %v", err)
	}
	var plan contract.StoragePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	for _, e := range plan.Entities {
		switch e.Name {
		case "Recipe":
			if e.Store != contract.StorePostgres {
				t.Errorf("Recipe store = %q, want postgres", e.Store)
			}
			if !strings.Contains(e.Reason, "override") {
				t.Errorf("Recipe reason = %q", e.Reason)
			}
		case "Ingredient":
			if e.Store != contract.StoreMongo {
				t.Errorf("Ingredient store = %q, want mongo", e.Store)
			}
		}
	}

	sqlData, err := ws.ReadArtifact(job.ID, generator.ArtifactSQLSchema)
	if err != nil {
		t.Fatalf("read sql: %v", err)
	}
	if !strings.Contains(string(sqlData), "CREATE TABLE IF NOT EXISTS recipe (") {
		t.Errorf("overridden Recipe missing from sql:\n%s", sqlData)
	}
	mongoData, err := ws.ReadArtifact(job.ID, generator.ArtifactMongoSchemas)
	if err != nil {
		t.Fatalf("read mongo: %v", err)
	}
	if !strings.Contains(string(mongoData), `"ingredients"`) {
		t.Errorf("overridden Ingredient missing from mongo schemas:\n%s", mongoData)
	}
}

func TestRunJobSingleStoreModes(t *testing.T) {
	cases := []struct {
		stack         string
		wantArtifacts []string
		skipArtifacts []string
	}{
		{
			stack:         contract.ModePostgres,
			wantArtifacts: []string{generator.ArtifactSQLSchema, generator.ArtifactOverview},
			skipArtifacts: []string{generator.ArtifactMongoSchemas, generator.ArtifactMongoCollections},
		},
		{
			stack:         contract.ModeMongo,
			wantArtifacts: []string{generator.ArtifactMongoSchemas, generator.ArtifactMongoCollections, generator.ArtifactOverview},
			skipArtifacts: []string{generator.ArtifactSQLSchema},
		},
	}
	for _, tc := range cases {
		t.Run(tc.stack, func(t *testing.T) {
			svc, _, ws := testService(t, nil)
			ctx := context.Background()

			job, err := svc.CreateJob(ctx, CreateJobParams{
				SourcePath: hybridTree(t),
				DBStack:    tc.stack,
			})
			if err != nil {
				t.Fatalf("CreateJob: %v", err)
			}
			if err := svc.RunJob(ctx, job.ID); err != nil {
				t.Fatalf("RunJob: %v", err)
			}
			for _, name := range tc.wantArtifacts {
				if _, err := ws.ReadArtifact(job.ID, name); err != nil {
					t.Errorf("artifact %s: %v", name, err)
				}
			}
			for _, name := range tc.skipArtifacts {
				if _, err := ws.ReadArtifact(job.ID, name); !errors.Is(err, apperr.ErrNotFound) {
					t.Errorf("artifact %s should not exist, err = %v", name, err)
				}
			}
		})
	}
}

func TestCreateJobValidation(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		params CreateJobParams
	}{
		{"unknown stack", CreateJobParams{SourcePath: dir, DBStack: "oracle"}},
		{"missing path", CreateJobParams{SourcePath: filepath.Join(dir, "nope")}},
		{"file instead of dir", CreateJobParams{SourcePath: file}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateJob(ctx, tc.params)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestDeleteJobGuards(t *testing.T) {
	svc, db, _ := testService(t, nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobParams{SourcePath: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := db.UpdateStatus(job.ID, models.StatusRunning, models.StageIntake, ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteJob(ctx, job.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("delete running job: err = %v, want ErrConflict", err)
	}

	if err := db.UpdateStatus(job.ID, models.StatusDone, models.StageGenerate, ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("delete finished job: %v", err)
	}
	if _, err := svc.GetJob(ctx, job.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("job should be gone, err = %v", err)
	}
	if _, err := svc.ListArtifacts(ctx, job.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("artifacts should be gone, err = %v", err)
	}
}

func TestFailJob(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobParams{SourcePath: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := svc.FailJob(ctx, job.ID, "job queue full"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	got, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.StatusFailed || got.Error != "job queue full" {
		t.Errorf("job = %s/%q, want FAILED/job queue full", got.Status, got.Error)
	}
}

func TestRunJobCancelledContext(t *testing.T) {
	svc, _, _ := testService(t, nil)

	job, err := svc.CreateJob(context.Background(), CreateJobParams{SourcePath: hybridTree(t)})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.RunJob(ctx, job.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	got, err := svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if !strings.Contains(got.Error, "interrupted by shutdown") {
		t.Errorf("error = %q", got.Error)
	}
}

func TestRunJobPublishesEvents(t *testing.T) {
	broker := sse.NewBroker(time.Hour)
	defer broker.Close()
	svc, _, _ := testService(t, broker)
	ctx := context.Background()

	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	job, err := svc.CreateJob(ctx, CreateJobParams{SourcePath: hybridTree(t)})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	var stages, done, failed int
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			switch {
			case strings.Contains(s, "event: job.stage"):
				stages++
			case strings.Contains(s, "event: job.done"):
				done++
			case strings.Contains(s, "event: job.failed"):
				failed++
			}
			if done > 0 {
				break loop
			}
		case <-timeout:
			break loop
		}
	}
	if stages != 3 {
		t.Errorf("job.stage events = %d, want 3", stages)
	}
	if done != 1 {
		t.Errorf("job.done events = %d, want 1", done)
	}
	if failed != 0 {
		t.Errorf("job.failed events = %d, want 0", failed)
	}
}

func TestRunnerExecutesQueuedJobs(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := svc.CreateJob(ctx, CreateJobParams{SourcePath: hybridTree(t)})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	runner := NewRunner(svc, 1, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
	runDone := make(chan error, 1)
	go func() { runDone <- runner.Run(ctx) }()

	if err := runner.Enqueue(job.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		got, err := svc.GetJob(ctx, job.ID)
		return err == nil && got.Terminal()
	}, "job never reached a terminal status")

	got, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.StatusDone {
		t.Fatalf("status = %s (error %q), want DONE", got.Status, got.Error)
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunnerQueueBackpressure(t *testing.T) {
	svc, _, _ := testService(t, nil)

	// No Run loop: the queue fills and stays full.
	runner := NewRunner(svc, 1, 1, nil)
	if err := runner.Enqueue("job-a"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := runner.Enqueue("job-b"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second enqueue: err = %v, want ErrConflict", err)
	}
	if runner.Pending() != 1 {
		t.Errorf("pending = %d, want 1", runner.Pending())
	}
}

func TestScanWithoutJob(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	c, err := svc.Scan(ctx, testutil.SourceTree(t, map[string]string{"README.md": "x"}), "")
	if !errors.Is(err, apperr.ErrNoFindings) {
		t.Fatalf("err = %v, want ErrNoFindings", err)
	}
	if c == nil {
		t.Fatal("an empty tree should still yield a contract alongside ErrNoFindings")
	}
	if len(c.Notes) == 0 {
		t.Error("contract notes should explain the empty scan")
	}

	if _, err := svc.Scan(ctx, filepath.Join(t.TempDir(), "missing"), ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

package postgres

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/audit"
)

func init() {
	// Prefer a running podman machine when no docker host is configured.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if sock := strings.TrimSpace(string(out)); err == nil && sock != "" {
			os.Setenv("DOCKER_HOST", "unix://"+sock)
			if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
				os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
			}
		}
	}
}

// setupTestDB starts a PostgreSQL container and returns a migrated Store.
// Tests are skipped when no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()
	if testing.Short() || os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("skipping PostgreSQL integration test")
	}

	// Verify a container runtime is installed and answering.
	_, dockerErr := exec.LookPath("docker")
	_, podmanErr := exec.LookPath("podman")
	if dockerErr != nil && podmanErr != nil && os.Getenv("DOCKER_HOST") == "" {
		t.Skip("no container runtime found, skipping integration tests")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("modelserve_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	store, err := New(ctx, Config{DSN: dsn, MaxConns: 4, MigrateOnStart: true})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func makeRecord(id, subject string, kind api.Kind, at time.Time) audit.Record {
	return audit.Record{
		ID:         id,
		Time:       at.UTC().Truncate(time.Microsecond),
		RequestID:  "req-" + id,
		Kind:       kind,
		Protocol:   "http",
		RemoteAddr: "127.0.0.1:5000",
		Subject:    subject,
		Outcome:    audit.OutcomeOK,
		Duration:   1500 * time.Microsecond,
	}
}

func TestPostgres_AppendAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	rec := makeRecord(api.NewRecordID(), "alice", api.KindPredictSamples, time.Now())

	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Time.Equal(rec.Time) {
		t.Errorf("Time = %v, want %v", got.Time, rec.Time)
	}
	got.Time = rec.Time
	if got != rec {
		t.Errorf("Get = %+v, want %+v", got, rec)
	}

	if err := store.Append(ctx, rec); err == nil {
		t.Error("duplicate append succeeded")
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	store := setupTestDB(t)
	if _, err := store.Get(context.Background(), "rec_missing"); !errors.Is(err, audit.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPostgres_List(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	base := time.Now()
	store.Append(ctx, makeRecord("rec_a", "alice", api.KindScore, base))
	store.Append(ctx, makeRecord("rec_b", "bob", api.KindScore, base.Add(time.Second)))
	store.Append(ctx, makeRecord("rec_c", "alice", api.KindQueryModel, base.Add(2*time.Second)))

	all, err := store.List(ctx, audit.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "rec_c" {
		t.Fatalf("List = %+v", all)
	}

	filtered, _ := store.List(ctx, audit.ListOptions{Subject: "alice", Kind: api.KindScore})
	if len(filtered) != 1 || filtered[0].ID != "rec_a" {
		t.Errorf("filtered = %+v", filtered)
	}

	limited, _ := store.List(ctx, audit.ListOptions{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limited = %d records, want 2", len(limited))
	}
}

func TestPostgres_MigrationsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	if err := store.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

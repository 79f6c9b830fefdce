package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"testgen-session/internal/app"
	"testgen-session/internal/domain"
	"testgen-session/internal/infra/memory"
	pgarchive "testgen-session/internal/infra/postgres"
	pgmigrations "testgen-session/internal/infra/postgres/migrations"
	infraredis "testgen-session/internal/infra/redis"
)

func TestSessionLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateArchive(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	authority := memory.NewAuthority(map[int64]domain.Test{7: sampleTest()})
	catalog := infraredis.NewTestRepository(redisClient, authority, 5*time.Minute)
	guard := infraredis.NewEntryGuard(redisClient, 30*time.Second)
	archive := pgarchive.NewArchive(pool)

	engine := app.NewEngine(authority, catalog,
		app.WithAutoFinalize(false, 0),
		app.WithArchive(archive),
		app.WithEntryGuard(guard),
	)

	if _, err := engine.Enter(ctx, 1, 7); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if _, err := engine.AnswerCurrent(ctx, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	engine.Navigator().Next()
	if _, err := engine.AnswerCurrent(ctx, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}

	finished, err := engine.Complete(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !finished.Finished || finished.Score != 50 {
		t.Fatalf("expected finished session scored 50, got %+v", finished)
	}

	results, err := archive.ListResults(ctx, 1, 7)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 || results[0].ID != finished.ID || results[0].Score != 50 {
		t.Fatalf("expected archived result for session %d, got %+v", finished.ID, results)
	}
	if len(results[0].Answers) != 2 {
		t.Fatalf("expected 2 archived answers, got %+v", results[0].Answers)
	}

	cached, err := redisClient.Exists(ctx, "test:7:definition").Result()
	if err != nil || cached != 1 {
		t.Fatalf("expected cached test definition, got %d err=%v", cached, err)
	}
}

func TestEntryGuardAcrossEngines(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	guard := infraredis.NewEntryGuard(redisClient, 30*time.Second)
	release, err := guard.Acquire(ctx, 1, 7)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	authority := memory.NewAuthority(map[int64]domain.Test{7: sampleTest()})
	engine := app.NewEngine(authority, authority, app.WithAutoFinalize(false, 0), app.WithEntryGuard(guard))
	if _, err := engine.Enter(ctx, 1, 7); !errors.Is(err, domain.ErrEntryLocked) {
		t.Fatalf("expected entry locked, got %v", err)
	}

	release()
	if _, err := engine.Enter(ctx, 1, 7); err != nil {
		t.Fatalf("enter after release: %v", err)
	}
	if authority.Creates() != 1 {
		t.Fatalf("expected one created session, got %d", authority.Creates())
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "sessions", "POSTGRES_PASSWORD": "sessionpass", "POSTGRES_DB": "sessiondb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://sessions:sessionpass@%s:%s/sessiondb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateArchive(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleTest() domain.Test {
	return domain.Test{
		ID:        7,
		LectureID: 3,
		Questions: []domain.Question{
			{ID: 101, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: 1},
			{ID: 102, Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: 0},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

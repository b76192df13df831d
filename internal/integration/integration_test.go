package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cybercalc/internal/app"
	"cybercalc/internal/domain"
	"cybercalc/internal/infra/postgres"
	pgmigrations "cybercalc/internal/infra/postgres/migrations"
	infraredis "cybercalc/internal/infra/redis"
	"cybercalc/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/crypto/bcrypt"
)

func TestStoreOverPostgresWithRedisCache(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

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

	durable := postgres.NewBackend(pool)
	cached := infraredis.NewCache(redisClient, durable, 5*time.Minute)
	log := logger.Discard()
	store := app.NewStore(cached, "cybercalc_", log)
	lb := app.NewLeaderboardService(store, log)
	auth := app.NewAuthService(store, app.WithBcryptCost(bcrypt.MinCost), app.WithNotifier(lb), app.WithAuthLogger(log))

	points := map[string]int{"userA": 230, "userB": 320, "userC": 150}
	for _, name := range []string{"userA", "userB", "userC"} {
		user, err := auth.Register(ctx, name, "secret1")
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		if _, err := auth.UpdatePoints(ctx, user.ID, points[name]); err != nil {
			t.Fatalf("update points: %v", err)
		}
	}

	if _, err := auth.Login(ctx, "userA", "wrong-pass"); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
	if _, err := auth.Login(ctx, "userA", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// A fresh store reading Postgres directly must see every write.
	reopened := app.NewStore(durable, "cybercalc_", log)
	top, err := app.NewLeaderboardService(reopened, log).TopUsers(ctx, 2)
	if err != nil {
		t.Fatalf("top users: %v", err)
	}
	if len(top) != 2 || top[0].Username != "userB" || top[1].Username != "userA" {
		t.Fatalf("expected [userB userA], got %+v", top)
	}

	current, err := app.NewAuthService(reopened).CurrentUser(ctx)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if current.Username != "userA" || current.Points != 230 {
		t.Fatalf("unexpected current user %+v", current)
	}
}

func TestPostgresBackendTreatsCorruptValuesAsEmpty(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	backend := postgres.NewBackend(pool)
	if err := backend.Set(ctx, "cybercalc_users", []byte("{broken")); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}
	store := app.NewStore(backend, "cybercalc_", logger.Discard())
	users, err := store.Users.All(ctx)
	if err != nil {
		t.Fatalf("read users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty users, got %+v", users)
	}

	if err := backend.Delete(ctx, "cybercalc_users"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := backend.Get(ctx, "cybercalc_users"); err != nil || ok {
		t.Fatalf("expected deleted key, got ok=%v err=%v", ok, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "cybercalc", "POSTGRES_PASSWORD": "cybercalc", "POSTGRES_DB": "cybercalc"},
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
	dsn := fmt.Sprintf("postgres://cybercalc:cybercalc@%s:%s/cybercalc?sslmode=disable", host, port.Port())
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

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
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

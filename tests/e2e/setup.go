//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pixelgrid/cmd/bootstrap"
	"pixelgrid/cmd/bootstrap/components"
	"pixelgrid/internal/infra/db"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/tests/common/dbtest"

	"github.com/docker/go-connections/nat"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
)

var (
	postgresContainerOnce sync.Once
	postgresTestContainer testcontainers.Container
	redisContainerOnce    sync.Once
	redisTestContainer    testcontainers.Container

	testUser     = "test"
	testPassword = "testpass"
)

type ContainerInfo struct {
	Host string
	Port nat.Port
}

type environment struct {
	pool     *pgxpool.Pool
	rdb      redis.UniversalClient
	router   *gin.Engine
	cfg      config.Config
	provider *fakeProvider
}

// ------------------------------------------------------------
// per test process setup
// ------------------------------------------------------------
func setupE2EEnvironment(t *testing.T, driver string) environment {
	postgresInfo, redisInfo := startContainers(t)

	pool, dbConfig := prepareDatabase(t, postgresInfo)
	provider := newFakeProvider(t)

	cfg := createTestConfig(dbConfig, redisInfo, provider.URL(), driver)
	router, rdb, app := buildE2EApp(pool, cfg)
	require.NotNil(t, router, "router setup failed")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			slog.Warn("failed to stop fx app", "error", err.Error())
		}
	})

	slog.Info("e2e environment ready",
		"postgres_host", postgresInfo.Host,
		"postgres_port", postgresInfo.Port.Port(),
		"redis_port", redisInfo.Port.Port(),
		"store_driver", driver)

	return environment{pool: pool, rdb: rdb, router: router, cfg: cfg, provider: provider}
}

// ------------------------------------------------------------
// containers
// ------------------------------------------------------------
func startContainers(t *testing.T) (ContainerInfo, ContainerInfo) {
	gin.SetMode(gin.TestMode)
	startPostgreSQLContainerOnce(t)
	startRedisContainerOnce(t)

	postgresInfo, err := getContainerHostPort(postgresTestContainer, "5432/tcp")
	require.NoError(t, err, "failed to read postgres container address")
	redisInfo, err := getContainerHostPort(redisTestContainer, "6379/tcp")
	require.NoError(t, err, "failed to read redis container address")

	return postgresInfo, redisInfo
}

// ------------------------------------------------------------
// database
// ------------------------------------------------------------
func prepareDatabase(t *testing.T, postgresInfo ContainerInfo) (*pgxpool.Pool, config.DBConfig) {
	// one database per test process
	dbName := "testdb_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	adminDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
		testUser, testPassword, postgresInfo.Host, postgresInfo.Port.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adminPool, err := pgxpool.New(ctx, adminDSN)
	require.NoError(t, err, "admin connection failed")
	defer adminPool.Close()

	var createErr error
	for attempts := range 5 {
		if attempts > 0 {
			time.Sleep(min(time.Duration(500+attempts*500)*time.Millisecond, 3*time.Second))
		}
		_, createErr = adminPool.Exec(ctx, "CREATE DATABASE "+dbName)
		if createErr == nil {
			break
		}
		slog.Warn("retrying database creation", "attempt", attempts+1, "error", createErr.Error())
	}
	require.NoError(t, createErr, "failed to create test database")

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()

		cleanupPool, err := pgxpool.New(cleanupCtx, adminDSN)
		if err != nil {
			slog.Warn("cleanup connection failed", "database", dbName, "error", err.Error())
			return
		}
		defer cleanupPool.Close()

		if _, err := cleanupPool.Exec(cleanupCtx, "DROP DATABASE IF EXISTS "+dbName+" WITH (FORCE)"); err != nil {
			slog.Warn("failed to drop test database", "database", dbName, "error", err.Error())
		}
	})

	dbConfig := config.DBConfig{
		Host:     postgresInfo.Host,
		Port:     postgresInfo.Port.Port(),
		User:     testUser,
		Password: testPassword,
		DBName:   dbName,
		SSLMode:  "disable",
		TimeZone: "UTC",
		MaxConns: 10,
	}

	pool, cleanup, err := db.Connect(context.Background(), dbConfig)
	require.NoError(t, err, "database connection failed")
	require.NotNil(t, pool)
	t.Cleanup(cleanup)

	require.NoError(t, applySchema(pool), "schema migration failed")
	return pool, dbConfig
}

// applySchema runs the desired-state schema directly; cmd/migrate diffs it with atlas in deployments.
func applySchema(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	const file = "migrations/schema.sql"
	var (
		sqlContent []byte
		readErr    error
	)
	// go test runs in the package dir
	for _, cand := range []string{file, filepath.Join("..", file), filepath.Join("..", "..", file)} {
		if sqlContent, readErr = os.ReadFile(cand); readErr == nil {
			break
		}
	}
	if readErr != nil {
		return fmt.Errorf("failed to read %s: %w", file, readErr)
	}
	if _, err := pool.Exec(ctx, string(sqlContent)); err != nil {
		return fmt.Errorf("failed to apply %s: %w", file, err)
	}
	return nil
}

// ------------------------------------------------------------
// application
// ------------------------------------------------------------
func buildE2EApp(pool *pgxpool.Pool, cfg config.Config) (*gin.Engine, redis.UniversalClient, *fx.App) {
	var router *gin.Engine
	var rdb redis.UniversalClient

	app := fx.New(
		fx.Provide(func() config.Config { return cfg }),
		fx.Provide(func() *pgxpool.Pool { return pool }),
		fx.Provide(func() *gin.Engine { return gin.New() }),
		bootstrap.LoggerModule,
		bootstrap.RedisModule,
		bootstrap.BrokerModule,
		bootstrap.PaymentModule,
		bootstrap.MetricsModule,
		bootstrap.JWTModule,
		components.PersistenceModule,
		components.UseCaseModule,
		components.HandlerModule,

		fx.Populate(&router, &rdb),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(fmt.Sprintf("failed to start fx app: %v", err))
	}
	return router, rdb, app
}

func createTestConfig(dbConfig config.DBConfig, redisInfo ContainerInfo, providerURL, driver string) config.Config {
	cfg := config.NewTestConfig()
	cfg.DB = dbConfig
	cfg.Store.Driver = driver
	cfg.Store.DocumentID = "e2e-" + uuid.NewString()
	cfg.Redis.Addr = redisInfo.Host + ":" + redisInfo.Port.Port()
	cfg.Redis.KeyPrefix = "e2e-" + uuid.NewString()
	cfg.Payment.BaseURL = providerURL
	cfg.Payment.ClientSecret = "test-secret"
	cfg.Payment.SweepInterval = 0
	return cfg
}

// ------------------------------------------------------------
// shared container helpers
// ------------------------------------------------------------
func startGenericContainer(req testcontainers.ContainerRequest, timeoutSec int) (testcontainers.Container, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
}

func startPostgreSQLContainerOnce(t *testing.T) {
	postgresContainerOnce.Do(func() {
		req := testcontainers.ContainerRequest{
			Image:        "postgres:17",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       "postgres",
			},
			Tmpfs: map[string]string{
				"/var/lib/postgresql/data": "rw,size=512m",
			},
			Cmd: []string{
				"postgres",
				"-c", "fsync=off",
				"-c", "full_page_writes=off",
				"-c", "synchronous_commit=off",
				"-c", "max_connections=200",
				"-c", "log_statement=none",
			},
			WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
					testUser, testPassword, host, port.Port())
			}).WithStartupTimeout(60 * time.Second),
			Labels: map[string]string{"purpose": "e2e-tests"},
		}

		var err error
		postgresTestContainer, err = startGenericContainer(req, 180)
		require.NoError(t, err, "failed to start postgres container")
	})
}

func startRedisContainerOnce(t *testing.T) {
	redisContainerOnce.Do(func() {
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			Cmd:          []string{"redis-server", "--save", "", "--appendonly", "no"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
			Labels:       map[string]string{"purpose": "e2e-tests"},
		}

		var err error
		redisTestContainer, err = startGenericContainer(req, 120)
		require.NoError(t, err, "failed to start redis container")
	})
}

func getContainerHostPort(c testcontainers.Container, port string) (ContainerInfo, error) {
	ctx := context.Background()
	mappedPort, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return ContainerInfo{}, err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return ContainerInfo{}, err
	}
	return ContainerInfo{Host: host, Port: mappedPort}, nil
}

// ------------------------------------------------------------
// shared suite
// ------------------------------------------------------------
type SharedSuite struct {
	suite.Suite
	Router   *gin.Engine
	DB       *pgxpool.Pool
	Redis    redis.UniversalClient
	Config   config.Config
	Provider *fakeProvider
	// Driver selects the grid document store; postgres when empty.
	Driver string
}

func (s *SharedSuite) SetupSuite() {
	driver := s.Driver
	if driver == "" {
		driver = config.StoreDriverPostgres
	}
	env := setupE2EEnvironment(s.T(), driver)
	s.DB, s.Redis, s.Router, s.Config, s.Provider = env.pool, env.rdb, env.router, env.cfg, env.provider
}

func (s *SharedSuite) SetupTest() {
	require.NoError(s.T(), dbtest.ResetDB(s.DB), "failed to reset database")
	if s.Config.Store.Driver == config.StoreDriverRedis {
		require.NoError(s.T(), s.Redis.Del(context.Background(), s.Config.Redis.KeyPrefix+":grid:"+s.Config.Store.DocumentID).Err())
	}
	s.Provider.Reset()
}

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/toolgrid/quotad/internal/api"
	"github.com/toolgrid/quotad/internal/auth"
	"github.com/toolgrid/quotad/internal/database"
	"github.com/toolgrid/quotad/internal/launch"
	"github.com/toolgrid/quotad/internal/metadata"
	"github.com/toolgrid/quotad/internal/quota"
)

const (
	testAPIKey       = "integration-test-api-key"
	testLaunchSecret = "integration-launch-secret-32chars!"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "quotad_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/quotad_test?sslmode=disable", pgHost, pgPort.Port())

	migrationsPath, err := filepath.Abs("../../migrations")
	if err != nil {
		t.Fatalf("resolving migrations path: %v", err)
	}
	if err := database.RunMigrations(dsn, migrationsPath); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("creating pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: redisHost + ":" + redisPort.Port()})
	t.Cleanup(func() { redisClient.Close() })

	// Assemble the API the way main.go does
	store := quota.NewPostgresStore(pool)
	quotaHandler := quota.NewHandler(quota.NewResolver(store), quota.NewEngine(store))
	metadataHandler := metadata.NewHandler(metadata.NewPublisher("https://tool.example.com", store))

	verifier := launch.NewVerifier(testLaunchSecret, 30*time.Second)
	replay := launch.NewReplayGuard(redisClient, 30*time.Second)
	launchHandler := launch.NewHandler(verifier, replay)

	router := api.NewRouter(pool, redisClient, api.RouterConfig{}, api.HandlerSet{
		GetMetadata: metadataHandler.Get,

		ListGlobalQuotas:   quotaHandler.ListGlobal,
		UpsertGlobalQuotas: quotaHandler.UpsertGlobal,
		ListCourseQuotas:   quotaHandler.ListCourse,
		UpsertCourseQuotas: quotaHandler.UpsertCourse,
		ListCourseMembers:  quotaHandler.ListCourseMembers,
		GetCourseMember:    quotaHandler.GetCourseMember,
		UpsertCourseMember: quotaHandler.UpsertCourseMember,

		AccessTool: launchHandler.Access,

		APIKeyMiddleware: auth.APIKey(testAPIKey),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	testEnv = &TestEnv{Pool: pool, RedisClient: redisClient, Server: server}
	return testEnv
}

// truncateRecords resets quota_records between tests; the seeded
// catalog stays.
func (e *TestEnv) truncateRecords(t *testing.T) {
	t.Helper()
	if _, err := e.Pool.Exec(context.Background(), "TRUNCATE quota_records"); err != nil {
		t.Fatalf("truncating quota_records: %v", err)
	}
}

func (e *TestEnv) request(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return resp, data
}

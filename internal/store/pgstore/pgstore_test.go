package pgstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/randysalars/dreamweaving/internal/store"
)

// testBackend holds a shared backend for all tests in this package.
var testBackend *Backend

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "dreamweave",
			"POSTGRES_PASSWORD": "dreamweave",
			"POSTGRES_DB":       "dreamweave",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("postgres://dreamweave:dreamweave@%s:%s/dreamweave?sslmode=disable", host, port.Port())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	testBackend, err = New(ctx, dsn, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create backend: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = testBackend.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

type payload struct {
	Items map[string]int `json:"items"`
}

func TestLoadMissingCollection(t *testing.T) {
	var p payload
	err := testBackend.Load(context.Background(), "never_written", &p)
	assert.ErrorIs(t, err, store.ErrNoCollection)
}

func TestSaveRoundTrip(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testBackend.Save(ctx, "roundtrip", payload{Items: map[string]int{"a": 1}}))

	var got payload
	require.NoError(t, testBackend.Load(ctx, "roundtrip", &got))
	assert.Equal(t, map[string]int{"a": 1}, got.Items)
}

func TestSaveKeepsBackupRow(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testBackend.Save(ctx, "backed_up", payload{Items: map[string]int{"v": 1}}))
	require.NoError(t, testBackend.Save(ctx, "backed_up", payload{Items: map[string]int{"v": 2}}))

	var live payload
	require.NoError(t, testBackend.Load(ctx, "backed_up", &live))
	assert.Equal(t, 2, live.Items["v"])

	var backupDoc []byte
	err := testBackend.pool.QueryRow(ctx,
		`SELECT doc FROM documents_backup WHERE name = $1`, "backed_up",
	).Scan(&backupDoc)
	require.NoError(t, err)
	assert.Contains(t, string(backupDoc), `"v": 1`)
}

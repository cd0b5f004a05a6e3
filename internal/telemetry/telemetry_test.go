package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "dreamweave", Version: "dev"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestMeterUsableWhenDisabled(t *testing.T) {
	m := Meter("dreamweaving/test")
	counter, err := m.Int64Counter("dreamweave.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}

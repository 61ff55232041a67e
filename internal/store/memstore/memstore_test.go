package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echovault/echovault/internal/store"
	"github.com/echovault/echovault/internal/store/storetest"
)

func TestMemStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestMemStore_HealthPing(t *testing.T) {
	s := New()
	require.NoError(t, s.HealthPing(context.Background()))
	s.SetOffline(true)
	require.Error(t, s.HealthPing(context.Background()))
}

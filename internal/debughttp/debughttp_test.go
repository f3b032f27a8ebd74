package debughttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/snailos/snail/inspect"
	"github.com/snailos/snail/internal/wasmtest"
	"github.com/snailos/snail/registry"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	reg := registry.New()
	for _, name := range []string{"init.2", "ls.3"} {
		mod, err := rt.InstantiateWithConfig(ctx, wasmtest.Memory, wazero.NewModuleConfig().WithName(name))
		require.NoError(t, err)
		require.NoError(t, reg.Register(registry.ModuleID(name), registry.NewHandle(mod)))
	}
	require.NoError(t, reg.SignalReady("init.2"))
	require.NoError(t, reg.SignalReady("ls.3"))
	require.Error(t, reg.SignalReady("ls.3"))

	surface := inspect.New()
	surface.Expose("os", struct{}{})

	return New(surface, reg)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestModules(t *testing.T) {
	rec := get(t, setup(t), "/debug/modules")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []Module
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	require.Equal(t, Module{ID: "init.2", State: "ready"}, got[0])
	require.Equal(t, "ls.3", got[1].ID)
	require.Contains(t, got[1].Fault, "duplicate ready signal")
}

func TestModule(t *testing.T) {
	h := setup(t)

	rec := get(t, h, "/debug/modules/init.2")
	require.Equal(t, http.StatusOK, rec.Code)
	var m Module
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	require.Equal(t, "ready", m.State)

	rec = get(t, h, "/debug/modules/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInspect(t *testing.T) {
	rec := get(t, setup(t), "/debug/inspect")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `["os"]`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := get(t, setup(t), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "snail_modules_ready_total"))
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obra-rdo/internal/model"
)

func TestObraProgress(t *testing.T) {
	o := model.Obra{PrazoInicio: "2025-01-01", PrazoFim: "2025-01-11"}
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}

	status, progress := ObraProgress(o, day("2024-12-31"))
	assert.Equal(t, StatusNotStarted, status)
	assert.Equal(t, 0, progress)

	status, progress = ObraProgress(o, day("2025-01-06"))
	assert.Equal(t, StatusInProgress, status)
	assert.Equal(t, 50, progress)

	status, progress = ObraProgress(o, day("2025-02-01"))
	assert.Equal(t, StatusDone, status)
	assert.Equal(t, 100, progress)

	o.PercentualConcluido = 80
	_, progress = ObraProgress(o, day("2025-01-06"))
	assert.Equal(t, 80, progress)

	status, _ = ObraProgress(model.Obra{PrazoInicio: "?"}, day("2025-01-06"))
	assert.Equal(t, StatusNotStarted, status)
}

func TestDashboardBuild(t *testing.T) {
	ctx := context.Background()
	stores := newStores(t)
	seedObra(t, stores, "Obra B")
	require.NoError(t, stores.Obras.Put(ctx, "Obra A", model.Obra{PrazoInicio: "2026-01-01", PrazoFim: "2026-12-31"}))
	seedFuncionario(t, stores, "f1", "Paulo")
	require.NoError(t, stores.Equipes.Put(ctx, "Hidráulica", model.Equipe{Obra: "Obra B", Membros: []string{"f1"}}))
	require.NoError(t, stores.Equipes.Put(ctx, "Elétrica", model.Equipe{Obra: "Obra B", Membros: []string{}}))

	s := NewDashboardService(stores)
	s.now = func() time.Time { return testNow }
	d, err := s.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, d.TotalObras)
	assert.Equal(t, 2, d.TotalEquipes)
	assert.Equal(t, 1, d.TotalFuncionarios)
	assert.Equal(t, 0, d.TotalRelatorios)
	assert.Equal(t, 1, d.ObrasEmAndamento)
	require.Len(t, d.Obras, 2)
	assert.Equal(t, "Obra A", d.Obras[0].Nome)
	assert.Equal(t, StatusNotStarted, d.Obras[0].Status)
	assert.Empty(t, d.Obras[0].Equipes)
	assert.Equal(t, []string{"Elétrica", "Hidráulica"}, d.Obras[1].Equipes)
}

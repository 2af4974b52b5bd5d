package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obra-rdo/internal/model"
	"obra-rdo/internal/storage"
)

func strp(s string) *string { return &s }

func TestDraftFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedObra(t, f.stores, "Obra A")
	seedFuncionario(t, f.stores, "f1", "Paulo")
	p := operator("ana", "Obra A")

	_, err := f.drafts.Get(p)
	assert.ErrorIs(t, err, ErrNotFound)

	d := f.drafts.Start(p)
	assert.Equal(t, "Obra A", d.Report.Obra)
	assert.Equal(t, "2025-04-13", d.Report.DataRelatorio)
	assert.Len(t, d.Report.HorariosChuvaTarde, 3)

	temp := 28
	d, err = f.drafts.Patch(ctx, p, model.DraftHeader{
		DataRelatorio:      strp("12/04/2025"),
		ClimaTarde:         strp("Chuvoso"),
		Temperatura:        &temp,
		HorariosChuvaTarde: map[string]bool{"15h-17h": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-04-12", d.Report.DataRelatorio)
	assert.True(t, d.Report.HorariosChuvaTarde["15h-17h"])
	assert.False(t, d.Report.HorariosChuvaTarde["13h-15h"])

	_, err = f.drafts.AddCrew(ctx, p, "Paulo")
	require.NoError(t, err)
	_, err = f.drafts.AddCrew(ctx, p, "Paulo")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.drafts.AddCrew(ctx, p, "Fulano")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.drafts.AddActivity(p, model.Atividade{Descricao: "Fundação"})
	require.NoError(t, err)
	d, err = f.drafts.AddIncident(p, model.Ocorrencia{Descricao: "Chuva forte", Gravidade: "Média"})
	require.NoError(t, err)
	assert.Equal(t, "Não iniciada", d.Report.Atividades[0].Status)

	_, err = f.drafts.AttachFile(p, storage.KindActivity, 0, "fundacao.jpg", []byte("img"))
	require.NoError(t, err)
	d, err = f.drafts.AttachFile(p, storage.KindPhoto, 9, "geral.jpg", []byte("img"))
	require.NoError(t, err)
	require.Len(t, d.Pending, 2)
	assert.Equal(t, 0, d.Pending[1].Index)

	_, err = f.drafts.AttachFile(p, storage.KindIncident, 3, "x.jpg", []byte("img"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	d, err = f.drafts.SetMaterials(p, model.Materiais{NecessidadeSim: true, MateriaisNecessarios: "Cimento", Urgente: true, MateriaisRecebidos: "ignorado"})
	require.NoError(t, err)
	assert.Empty(t, d.Report.MateriaisRecebidos)
	assert.True(t, d.Report.MateriaisUrgentes)

	r, err := f.drafts.Submit(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, model.NumeroRDO(1), r.NumeroRDO)
	assert.Equal(t, []string{"Paulo"}, r.Equipe)
	assert.Len(t, r.Atividades[0].Anexos, 1)
	assert.Len(t, r.Fotos, 1)
	assert.Equal(t, 28, r.Temperatura)

	_, err = f.drafts.Get(p)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDraftSubmitFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedObra(t, f.stores, "Obra A")
	p := adminPrincipal()

	f.drafts.Start(p)
	_, err := f.drafts.Patch(ctx, p, model.DraftHeader{Obra: strp("Obra A")})
	require.NoError(t, err)

	_, err = f.drafts.Submit(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidInput)

	d, err := f.drafts.Get(p)
	require.NoError(t, err)
	assert.Equal(t, "Obra A", d.Report.Obra)
}

func TestDraftPatchChecksObraAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedObra(t, f.stores, "Obra A")
	seedObra(t, f.stores, "Obra B")
	p := operator("ana", "Obra A")
	f.drafts.Start(p)

	_, err := f.drafts.Patch(ctx, p, model.DraftHeader{Obra: strp("Obra B")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.drafts.Patch(ctx, p, model.DraftHeader{Obra: strp("Obra X"), ClimaManha: strp("Neve")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unknown_obra", verr.Fields["obra"])
	assert.Equal(t, "invalid", verr.Fields["clima_manha"])
}

func TestRemoveActivityShiftsUploads(t *testing.T) {
	f := newFixture(t)
	p := adminPrincipal()
	f.drafts.Start(p)
	for _, desc := range []string{"A", "B", "C"} {
		_, err := f.drafts.AddActivity(p, model.Atividade{Descricao: desc})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := f.drafts.AttachFile(p, storage.KindActivity, i, "f.jpg", []byte("x"))
		require.NoError(t, err)
	}

	d, err := f.drafts.RemoveActivity(p, 1)
	require.NoError(t, err)
	require.Len(t, d.Report.Atividades, 2)
	assert.Equal(t, "C", d.Report.Atividades[1].Descricao)
	require.Len(t, d.Pending, 2)
	assert.Equal(t, 0, d.Pending[0].Index)
	assert.Equal(t, 1, d.Pending[1].Index)

	_, err = f.drafts.RemoveActivity(p, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepEvictsIdleDrafts(t *testing.T) {
	f := newFixture(t)
	now := testNow
	f.drafts.now = func() time.Time { return now }

	f.drafts.Start(operator("ana"))
	now = now.Add(6 * time.Hour)
	f.drafts.Start(operator("bia"))

	now = now.Add(7 * time.Hour)
	assert.Equal(t, 1, f.drafts.Sweep())
	_, err := f.drafts.Get(operator("ana"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.drafts.Get(operator("bia"))
	assert.NoError(t, err)

	require.NoError(t, f.drafts.Discard(operator("bia")))
	assert.ErrorIs(t, f.drafts.Discard(operator("bia")), ErrNotFound)
}

func TestDraftUploadLimits(t *testing.T) {
	f := newFixture(t)
	p := adminPrincipal()

	// total size: the fixture allows 1 MB of pending uploads
	f.drafts.Start(p)
	half := make([]byte, 512<<10)
	for i := 0; i < 2; i++ {
		_, err := f.drafts.AttachFile(p, storage.KindPhoto, 0, "foto.jpg", half)
		require.NoError(t, err)
	}
	_, err := f.drafts.AttachFile(p, storage.KindPhoto, 0, "mais.jpg", []byte("x"))
	assert.ErrorIs(t, err, ErrTooLarge)

	// file count: at most five per draft
	d := f.drafts.Start(p)
	require.Empty(t, d.Pending)
	for i := 0; i < 5; i++ {
		_, err := f.drafts.AttachFile(p, storage.KindPhoto, 0, "f.jpg", []byte("x"))
		require.NoError(t, err)
	}
	_, err = f.drafts.AttachFile(p, storage.KindPhoto, 0, "f.jpg", []byte("x"))
	assert.ErrorIs(t, err, ErrTooLarge)

	d, err = f.drafts.Get(p)
	require.NoError(t, err)
	assert.Len(t, d.Pending, 5)
}

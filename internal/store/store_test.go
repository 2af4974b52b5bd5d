package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"obra-rdo/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newFileBackend(t *testing.T) *FileBackend {
	t.Helper()
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "dados"))
	require.NoError(t, err)
	return b
}

func newGormBackend(t *testing.T) *GormBackend {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	b, err := NewGormBackend(db)
	require.NoError(t, err)
	return b
}

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"file": newFileBackend(t),
		"gorm": newGormBackend(t),
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			obras := NewCollection[model.Obra](b, model.CollObras)
			want := map[string]model.Obra{
				"EEEM GUARARAPES - OBRA_INTEGRA SUL": {
					Endereco: "Rua A, 100", ResponsavelTecnico: "Eng. Ana", RRT: "123",
					PrazoInicio: "2025-01-10", PrazoFim: "2025-10-10",
				},
				"DIMED – EXPANSÃO LOGÍSTICA EDS": {Endereco: "Av. B", PrazoInicio: "2025-02-01", PrazoFim: "2025-12-01"},
			}
			require.NoError(t, obras.Save(ctx, want))

			got, err := obras.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// a second save replaces the whole document
			require.NoError(t, obras.Save(ctx, map[string]model.Obra{}))
			got, err = obras.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestLoadMissingIsEmpty(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := NewCollection[model.Equipe](b, model.CollEquipes).Load(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestLoadCorruptFileIsEmpty(t *testing.T) {
	b := newFileBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(b.Dir(), "usuarios.json"), []byte(`{"admin": {"senha": `), 0o644))

	users := NewCollection[model.Usuario](b, model.CollUsuarios)
	got, err := users.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	// the next write heals the file
	require.NoError(t, users.Put(context.Background(), "admin", model.Usuario{Senha: "h", Nivel: model.RoleAdmin, Ativo: true}))
	got, err = users.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// the unreadable document is kept aside
	backups, err := filepath.Glob(filepath.Join(b.Dir(), "usuarios.corrupt-*.json"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, `{"admin": {"senha": `, string(data))
}

func TestUnreadableRecordsSurviveWrites(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Write(ctx, model.CollRelatorios, []byte(`{
				"old-1": {"id": "old-1", "numero_rdo": 1, "obra": "Escola", "temperatura": 25},
				"old-2": {"id": "old-2", "numero_rdo": 2, "obra": "Escola", "equipe": "Paulo e Ana"}
			}`)))
			reps := NewCollection[model.Relatorio](b, model.CollRelatorios)

			got, err := reps.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got, 1)
			assert.Contains(t, got, "old-1")

			require.NoError(t, reps.Put(ctx, "new", model.Relatorio{ID: "new", NumeroRDO: 3, Obra: "Escola"}))

			got, err = reps.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got, 2)
			assert.Contains(t, got, "old-1")
			assert.Contains(t, got, "new")

			data, err := b.Read(ctx, model.CollRelatorios)
			require.NoError(t, err)
			var stored map[string]map[string]any
			require.NoError(t, json.Unmarshal(data, &stored))
			require.Contains(t, stored, "old-2")
			assert.Equal(t, "Paulo e Ana", stored["old-2"]["equipe"])
			assert.EqualValues(t, 2, stored["old-2"]["numero_rdo"])

			found, err := reps.Delete(ctx, "old-2")
			require.NoError(t, err)
			assert.True(t, found)
			data, err = b.Read(ctx, model.CollRelatorios)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "old-2")
		})
	}
}

func TestFileWriteLeavesNoTempFiles(t *testing.T) {
	b := newFileBackend(t)
	c := NewCollection[model.Funcionario](b, model.CollFuncionarios)
	require.NoError(t, c.Put(context.Background(), "ana", model.Funcionario{Nome: "Ana", Funcao: "Pedreira"}))

	entries, err := os.ReadDir(b.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "funcionarios.json", entries[0].Name())
}

func TestUpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Funcionario](newFileBackend(t), model.CollFuncionarios)
	require.NoError(t, c.Put(ctx, "ana", model.Funcionario{Nome: "Ana"}))

	boom := errors.New("boom")
	err := c.Update(ctx, func(items map[string]model.Funcionario) error {
		delete(items, "ana")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := c.Get(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Funcionario](newFileBackend(t), model.CollFuncionarios)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("f%02d", i)
			assert.NoError(t, c.Put(ctx, key, model.Funcionario{Nome: key}))
		}(i)
	}
	wg.Wait()

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestDeleteReportsPresence(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Equipe](newGormBackend(t), model.CollEquipes)
	require.NoError(t, c.Put(ctx, "Alvenaria", model.Equipe{Nome: "Alvenaria", Obra: "DIMED"}))

	found, err := c.Delete(ctx, "Alvenaria")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = c.Delete(ctx, "Alvenaria")
	require.NoError(t, err)
	assert.False(t, found)
}

package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"obra-rdo/internal/config"
	"obra-rdo/internal/model"
	"obra-rdo/internal/storage"
	"obra-rdo/internal/store"
)

var testNow = time.Date(2025, 4, 13, 10, 0, 0, 0, time.UTC)

func newStores(t *testing.T) *store.Stores {
	t.Helper()
	b, err := store.NewFileBackend(filepath.Join(t.TempDir(), "dados"))
	require.NoError(t, err)
	return store.NewStores(b)
}

func testAuthConfig() config.AuthConfig {
	return config.Default().Auth
}

func adminPrincipal() model.Principal {
	return model.Principal{Username: "admin", Usuario: model.Usuario{
		Nivel: model.RoleAdmin, NomeCompleto: "Administrador", Ativo: true,
	}}
}

func operator(username string, obras ...string) model.Principal {
	return model.Principal{Username: username, Usuario: model.Usuario{
		Nivel: model.RoleOperational, NomeCompleto: username, Ativo: true, ObrasAtribuidas: obras,
	}}
}

func seedObra(t *testing.T, stores *store.Stores, name string) {
	t.Helper()
	require.NoError(t, stores.Obras.Put(context.Background(), name, model.Obra{
		Endereco: "Rua A, 100", PrazoInicio: "2025-01-01", PrazoFim: "2025-12-31",
	}))
}

func seedFuncionario(t *testing.T, stores *store.Stores, id, nome string) {
	t.Helper()
	require.NoError(t, stores.Funcionarios.Put(context.Background(), id, model.Funcionario{
		Nome: nome, Funcao: "Pedreiro", Obras: []string{},
	}))
}

type fixture struct {
	stores  *store.Stores
	files   *storage.Attachments
	reports *ReportService
	catalog *CatalogService
	drafts  *DraftService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := newStores(t)
	files, err := storage.NewAttachments(filepath.Join(t.TempDir(), "anexos"))
	require.NoError(t, err)
	reports := NewReportService(stores, files)
	reports.now = func() time.Time { return testNow }
	catalog := NewCatalogService(stores)
	catalog.now = reports.now
	drafts := NewDraftService(reports, catalog, config.DraftsConfig{TTL: 12 * time.Hour, MaxFiles: 5, MaxPendingMB: 1})
	drafts.now = reports.now
	return &fixture{stores: stores, files: files, reports: reports, catalog: catalog, drafts: drafts}
}

func minimalReport(obra string) model.Relatorio {
	return model.Relatorio{
		Obra:          obra,
		DataRelatorio: "13/04/2025",
		Atividades:    []model.Atividade{{Descricao: "Concretagem da laje", Status: "Em Andamento"}},
	}
}

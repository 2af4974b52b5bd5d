package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obra-rdo/internal/model"
	"obra-rdo/internal/store"
)

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	stores := newStores(t)
	seedObra(t, stores, "Obra A")
	users := NewUserService(stores, "mudar123")
	auth := NewAuthService(stores, testAuthConfig())
	_, err := auth.Bootstrap(ctx)
	require.NoError(t, err)

	u, err := users.Create(ctx, model.CreateUserRequest{
		Username: "maria", Name: "Maria Souza", Role: "operacional", AssignedObras: []string{"Obra A"},
	})
	require.NoError(t, err)
	assert.True(t, u.FirstAccess)
	assert.Equal(t, []string{"Obra A"}, u.AssignedObras)

	_, err = users.Create(ctx, model.CreateUserRequest{Username: "maria", Name: "Outra", Role: "admin"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = users.Create(ctx, model.CreateUserRequest{Username: "x", Name: "X", Role: "chefe", AssignedObras: []string{"Obra Z"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invalid", verr.Fields["role"])
	assert.Equal(t, "unknown_obra", verr.Fields["assigned_obras"])

	role := "gerente"
	u, err = users.Update(ctx, "maria", model.UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)
	assert.Equal(t, "Maria Souza", u.Name)

	list, err := users.List(ctx, "SOUZA")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "maria", list[0].Username)

	list, err = users.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, users.Delete(ctx, "maria"))
	_, err = users.Get(ctx, "maria")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, users.Delete(ctx, "maria"), ErrNotFound)
}

func TestBootstrapAdminIsProtected(t *testing.T) {
	ctx := context.Background()
	stores := newStores(t)
	users := NewUserService(stores, "mudar123")
	_, err := NewAuthService(stores, testAuthConfig()).Bootstrap(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, users.Delete(ctx, "admin"), ErrProtectedUser)

	off := false
	_, err = users.Update(ctx, "admin", model.UpdateUserRequest{Active: &off})
	assert.ErrorIs(t, err, ErrProtectedUser)

	role := "operacional"
	_, err = users.Update(ctx, "admin", model.UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, ErrProtectedUser)
}

func TestLastActiveAdminIsProtected(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "dados")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// accounts written before the bootstrap flag existed
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usuarios.json"), []byte(`{
		"gestao": {"senha": "x", "nivel": "admin", "nome_completo": "Gestão", "primeiro_acesso": false},
		"joao": {"senha": "y", "nivel_acesso": "engenheiro", "nome_completo": "João"}
	}`), 0o644))
	backend, err := store.NewFileBackend(dir)
	require.NoError(t, err)
	users := NewUserService(store.NewStores(backend), "mudar123")

	assert.ErrorIs(t, users.Delete(ctx, "gestao"), ErrProtectedUser)
	off := false
	_, err = users.Update(ctx, "gestao", model.UpdateUserRequest{Active: &off})
	assert.ErrorIs(t, err, ErrProtectedUser)
	role := "gerente"
	_, err = users.Update(ctx, "gestao", model.UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, ErrProtectedUser)

	// renaming the last admin is still allowed
	name := "Gestão da Obra"
	_, err = users.Update(ctx, "gestao", model.UpdateUserRequest{Name: &name})
	require.NoError(t, err)

	// with a second active admin the first one can go
	admin := "admin"
	_, err = users.Update(ctx, "joao", model.UpdateUserRequest{Role: &admin})
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, "gestao"))
	assert.ErrorIs(t, users.Delete(ctx, "joao"), ErrProtectedUser)

	list, err := users.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.RoleAdmin, list[0].Role)
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	stores := newStores(t)
	users := NewUserService(stores, "mudar123")
	auth := NewAuthService(stores, testAuthConfig())

	_, err := users.Create(ctx, model.CreateUserRequest{Username: "pedro", Name: "Pedro", Role: "gerente"})
	require.NoError(t, err)
	_, err = auth.ChangePassword(ctx, "pedro", model.ChangePasswordRequest{Current: "mudar123", New: "pedro2025", Confirm: "pedro2025"})
	require.NoError(t, err)

	require.NoError(t, users.ResetPassword(ctx, "pedro"))
	p, err := auth.Login(ctx, "pedro", "mudar123")
	require.NoError(t, err)
	assert.True(t, p.PrimeiroAcesso)

	assert.ErrorIs(t, users.ResetPassword(ctx, "ninguem"), ErrNotFound)
}

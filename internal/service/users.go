package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"obra-rdo/internal/datefmt"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/model"
	"obra-rdo/internal/store"
)

type UserService struct {
	users           *store.Collection[model.Usuario]
	obras           *store.Collection[model.Obra]
	defaultPassword string
	now             func() time.Time
}

func NewUserService(stores *store.Stores, defaultPassword string) *UserService {
	return &UserService{
		users:           stores.Usuarios,
		obras:           stores.Obras,
		defaultPassword: defaultPassword,
		now:             time.Now,
	}
}

// List returns users sorted by username. A non-empty search keeps only users
// whose username or full name contains it, ignoring case.
func (s *UserService) List(ctx context.Context, search string) ([]model.User, error) {
	items, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	q := strings.ToLower(strings.TrimSpace(search))
	out := make([]model.User, 0, len(items))
	for name, u := range items {
		if q != "" && !strings.Contains(strings.ToLower(name), q) &&
			!strings.Contains(strings.ToLower(u.NomeCompleto), q) {
			continue
		}
		out = append(out, model.NewUser(name, u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *UserService) Get(ctx context.Context, username string) (model.User, error) {
	u, ok, err := s.users.Get(ctx, username)
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return model.User{}, ErrNotFound
	}
	return model.NewUser(username, u), nil
}

// Create adds an account with the default password; the user must change it
// on first login.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	username := strings.TrimSpace(req.Username)
	v := Violations{}
	v.Required("username", username)
	v.Required("name", req.Name)
	role, ok := model.ParseRole(req.Role)
	if !ok {
		v.Add("role", "invalid")
	}
	if err := s.checkObras(ctx, req.AssignedObras, v); err != nil {
		return model.User{}, err
	}
	if err := v.Err(); err != nil {
		return model.User{}, err
	}
	hash, err := HashPassword(s.defaultPassword)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().Format(datefmt.Timestamp)
	u := model.Usuario{
		Senha:                hash,
		Nivel:                role,
		NomeCompleto:         strings.TrimSpace(req.Name),
		PrimeiroAcesso:       true,
		ObrasAtribuidas:      req.AssignedObras,
		Ativo:                true,
		UltimaAlteracaoSenha: now,
		DataCriacao:          now,
	}
	err = s.users.Update(ctx, func(items map[string]model.Usuario) error {
		if _, exists := items[username]; exists {
			return ErrConflict
		}
		items[username] = u
		return nil
	})
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	logger.Info("user.created", "user", username, "role", role)
	return model.NewUser(username, u), nil
}

func (s *UserService) Update(ctx context.Context, username string, req model.UpdateUserRequest) (model.User, error) {
	v := Violations{}
	var role model.Role
	if req.Role != nil {
		r, ok := model.ParseRole(*req.Role)
		if !ok {
			v.Add("role", "invalid")
		}
		role = r
	}
	if req.Name != nil {
		v.Required("name", *req.Name)
	}
	if err := s.checkObras(ctx, req.AssignedObras, v); err != nil {
		return model.User{}, err
	}
	if err := v.Err(); err != nil {
		return model.User{}, err
	}

	var out model.User
	err := s.users.Update(ctx, func(items map[string]model.Usuario) error {
		u, ok := items[username]
		if !ok {
			return ErrNotFound
		}
		losesAdmin := (req.Role != nil && role != model.RoleAdmin) || (req.Active != nil && !*req.Active)
		if losesAdmin && (u.Bootstrap || lastAdmin(items, username)) {
			return ErrProtectedUser
		}
		if req.Name != nil {
			u.NomeCompleto = strings.TrimSpace(*req.Name)
		}
		if req.Role != nil {
			u.Nivel = role
		}
		if req.AssignedObras != nil {
			u.ObrasAtribuidas = req.AssignedObras
		}
		if req.Active != nil {
			u.Ativo = *req.Active
		}
		items[username] = u
		out = model.NewUser(username, u)
		return nil
	})
	if err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return out, nil
}

// Delete removes an account. The bootstrap admin and the last active admin
// cannot be deleted.
func (s *UserService) Delete(ctx context.Context, username string) error {
	err := s.users.Update(ctx, func(items map[string]model.Usuario) error {
		u, ok := items[username]
		if !ok {
			return ErrNotFound
		}
		if u.Bootstrap || lastAdmin(items, username) {
			return ErrProtectedUser
		}
		delete(items, username)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	logger.Info("user.deleted", "user", username)
	return nil
}

// ResetPassword sets the default password and forces a change on next login.
func (s *UserService) ResetPassword(ctx context.Context, username string) error {
	hash, err := HashPassword(s.defaultPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.users.Update(ctx, func(items map[string]model.Usuario) error {
		u, ok := items[username]
		if !ok {
			return ErrNotFound
		}
		u.Senha = hash
		u.PrimeiroAcesso = true
		u.UltimaAlteracaoSenha = s.now().Format(datefmt.Timestamp)
		items[username] = u
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	logger.Info("user.password_reset", "user", username)
	return nil
}

// lastAdmin reports whether username is the only active admin account.
func lastAdmin(items map[string]model.Usuario, username string) bool {
	u := items[username]
	if u.Nivel != model.RoleAdmin || !u.Ativo {
		return false
	}
	for name, other := range items {
		if name != username && other.Nivel == model.RoleAdmin && other.Ativo {
			return false
		}
	}
	return true
}

func (s *UserService) checkObras(ctx context.Context, names []string, v Violations) error {
	if len(names) == 0 {
		return nil
	}
	obras, err := s.obras.Load(ctx)
	if err != nil {
		return fmt.Errorf("load obras: %w", err)
	}
	for _, n := range names {
		if _, ok := obras[n]; !ok {
			v.Add("assigned_obras", "unknown_obra")
			break
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obra-rdo/internal/config"
	"obra-rdo/internal/datefmt"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/model"
	"obra-rdo/internal/store"
)

type AuthService struct {
	users *store.Collection[model.Usuario]
	cfg   config.AuthConfig
	now   func() time.Time
}

func NewAuthService(stores *store.Stores, cfg config.AuthConfig) *AuthService {
	return &AuthService{users: stores.Usuarios, cfg: cfg, now: time.Now}
}

// Login checks the credentials and returns the account. Passwords stored in a
// legacy format are rehashed with bcrypt on success.
func (s *AuthService) Login(ctx context.Context, username, password string) (model.Principal, error) {
	u, ok, err := s.users.Get(ctx, username)
	if err != nil {
		return model.Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !u.Ativo {
		return model.Principal{}, ErrInvalidCredentials
	}
	match, legacy := CheckPassword(u.Senha, password)
	if !match {
		return model.Principal{}, ErrInvalidCredentials
	}
	if legacy {
		if err := s.rehash(ctx, username, password); err != nil {
			logger.Warn("auth.rehash_failed", "user", username, "err", err)
		} else {
			logger.Info("auth.rehashed", "user", username)
		}
	}
	return model.Principal{Username: username, Usuario: u}, nil
}

func (s *AuthService) rehash(ctx context.Context, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, func(items map[string]model.Usuario) error {
		u, ok := items[username]
		if !ok {
			return ErrNotFound
		}
		u.Senha = hash
		items[username] = u
		return nil
	})
}

// Principal loads the current state of an authenticated account. Deleted and
// deactivated accounts are reported as ErrNotFound.
func (s *AuthService) Principal(ctx context.Context, username string) (model.Principal, error) {
	u, ok, err := s.users.Get(ctx, username)
	if err != nil {
		return model.Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !u.Ativo {
		return model.Principal{}, ErrNotFound
	}
	return model.Principal{Username: username, Usuario: u}, nil
}

// ChangePassword replaces the password after checking the current one and
// clears the first-access flag.
func (s *AuthService) ChangePassword(ctx context.Context, username string, req model.ChangePasswordRequest) (model.Principal, error) {
	v := Violations{}
	if len([]rune(req.New)) < minPasswordLen {
		v.Add("new", "too_short")
	}
	if req.New != req.Confirm {
		v.Add("confirm", "mismatch")
	}
	if err := v.Err(); err != nil {
		return model.Principal{}, err
	}
	hash, err := HashPassword(req.New)
	if err != nil {
		return model.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	var out model.Principal
	err = s.users.Update(ctx, func(items map[string]model.Usuario) error {
		u, ok := items[username]
		if !ok {
			return ErrNotFound
		}
		if match, _ := CheckPassword(u.Senha, req.Current); !match {
			return ErrInvalidCredentials
		}
		u.Senha = hash
		u.PrimeiroAcesso = false
		u.UltimaAlteracaoSenha = s.now().Format(datefmt.Timestamp)
		items[username] = u
		out = model.Principal{Username: username, Usuario: u}
		return nil
	})
	if err != nil {
		return model.Principal{}, fmt.Errorf("change password: %w", err)
	}
	logger.Info("auth.password_changed", "user", username)
	return out, nil
}

// Bootstrap creates the configured admin account when no user exists yet.
func (s *AuthService) Bootstrap(ctx context.Context) (bool, error) {
	hash, err := HashPassword(s.cfg.AdminPassword)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	created := false
	err = s.users.Update(ctx, func(items map[string]model.Usuario) error {
		if len(items) > 0 {
			return errSkip
		}
		now := s.now().Format(datefmt.Timestamp)
		items[s.cfg.AdminUser] = model.Usuario{
			Senha:                hash,
			Nivel:                model.RoleAdmin,
			NomeCompleto:         "Administrador",
			PrimeiroAcesso:       true,
			Ativo:                true,
			Bootstrap:            true,
			UltimaAlteracaoSenha: now,
			DataCriacao:          now,
		}
		created = true
		return nil
	})
	if err != nil && !errors.Is(err, errSkip) {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Info("auth.bootstrap", "user", s.cfg.AdminUser)
	}
	return created, nil
}

// errSkip aborts an Update without saving.
var errSkip = errors.New("skip")

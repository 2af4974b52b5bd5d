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

// CatalogService manages the master data reports refer to: obras,
// funcionários and equipes.
type CatalogService struct {
	stores *store.Stores
	now    func() time.Time
}

func NewCatalogService(stores *store.Stores) *CatalogService {
	return &CatalogService{stores: stores, now: time.Now}
}

// sortedByKey returns the values of items ordered by key, with the key copied
// into each value by setKey.
func sortedByKey[T any](items map[string]T, setKey func(*T, string)) []T {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		v := items[k]
		setKey(&v, k)
		out = append(out, v)
	}
	return out
}

// ---- obras ----

func (s *CatalogService) ListObras(ctx context.Context) ([]model.Obra, error) {
	items, err := s.stores.Obras.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list obras: %w", err)
	}
	return sortedByKey(items, func(o *model.Obra, k string) { o.Nome = k }), nil
}

func (s *CatalogService) GetObra(ctx context.Context, name string) (model.Obra, error) {
	o, ok, err := s.stores.Obras.Get(ctx, name)
	if err != nil {
		return model.Obra{}, fmt.Errorf("get obra: %w", err)
	}
	if !ok {
		return model.Obra{}, ErrNotFound
	}
	o.Nome = name
	return o, nil
}

func (s *CatalogService) CreateObra(ctx context.Context, o model.Obra) (model.Obra, error) {
	o.Nome = strings.TrimSpace(o.Nome)
	if err := validateObra(&o); err != nil {
		return model.Obra{}, err
	}
	o.DataCadastro = s.now().Format(datefmt.Timestamp)
	err := s.stores.Obras.Update(ctx, func(items map[string]model.Obra) error {
		if _, exists := items[o.Nome]; exists {
			return ErrConflict
		}
		items[o.Nome] = o
		return nil
	})
	if err != nil {
		return model.Obra{}, fmt.Errorf("create obra: %w", err)
	}
	logger.Info("obra.created", "obra", o.Nome)
	return o, nil
}

func (s *CatalogService) UpdateObra(ctx context.Context, name string, o model.Obra) (model.Obra, error) {
	o.Nome = name
	if err := validateObra(&o); err != nil {
		return model.Obra{}, err
	}
	err := s.stores.Obras.Update(ctx, func(items map[string]model.Obra) error {
		old, ok := items[name]
		if !ok {
			return ErrNotFound
		}
		o.DataCadastro = old.DataCadastro
		items[name] = o
		return nil
	})
	if err != nil {
		return model.Obra{}, fmt.Errorf("update obra: %w", err)
	}
	return o, nil
}

func (s *CatalogService) DeleteObra(ctx context.Context, name string) error {
	found, err := s.stores.Obras.Delete(ctx, name)
	if err != nil {
		return fmt.Errorf("delete obra: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	logger.Info("obra.deleted", "obra", name)
	return nil
}

func validateObra(o *model.Obra) error {
	v := Violations{}
	v.Required("nome", o.Nome)
	v.Required("endereco", o.Endereco)
	start, errStart := datefmt.Parse(o.PrazoInicio)
	if errStart != nil {
		v.Add("prazo_inicio", "invalid_date")
	}
	due, errDue := datefmt.Parse(o.PrazoFim)
	if errDue != nil {
		v.Add("prazo_fim", "invalid_date")
	}
	if errStart == nil && errDue == nil {
		if due.Before(start) {
			v.Add("prazo_fim", "before_start")
		}
		o.PrazoInicio = start.Format(datefmt.Canonical)
		o.PrazoFim = due.Format(datefmt.Canonical)
	}
	if o.PercentualConcluido < 0 || o.PercentualConcluido > 100 {
		v.Add("percentual_concluido", "out_of_range")
	}
	return v.Err()
}

// ---- funcionarios ----

func (s *CatalogService) ListFuncionarios(ctx context.Context) ([]model.Funcionario, error) {
	items, err := s.stores.Funcionarios.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list funcionarios: %w", err)
	}
	return sortedByKey(items, func(f *model.Funcionario, k string) { f.ID = k }), nil
}

func (s *CatalogService) GetFuncionario(ctx context.Context, id string) (model.Funcionario, error) {
	f, ok, err := s.stores.Funcionarios.Get(ctx, id)
	if err != nil {
		return model.Funcionario{}, fmt.Errorf("get funcionario: %w", err)
	}
	if !ok {
		return model.Funcionario{}, ErrNotFound
	}
	f.ID = id
	return f, nil
}

// CreateFuncionario stores f under its ID, or under its name when no ID is given.
func (s *CatalogService) CreateFuncionario(ctx context.Context, f model.Funcionario) (model.Funcionario, error) {
	f.Nome = strings.TrimSpace(f.Nome)
	f.ID = strings.TrimSpace(f.ID)
	if f.ID == "" {
		f.ID = f.Nome
	}
	if err := s.validateFuncionario(ctx, &f); err != nil {
		return model.Funcionario{}, err
	}
	f.DataCadastro = s.now().Format(datefmt.Timestamp)
	err := s.stores.Funcionarios.Update(ctx, func(items map[string]model.Funcionario) error {
		if _, exists := items[f.ID]; exists {
			return ErrConflict
		}
		items[f.ID] = f
		return nil
	})
	if err != nil {
		return model.Funcionario{}, fmt.Errorf("create funcionario: %w", err)
	}
	logger.Info("funcionario.created", "id", f.ID)
	return f, nil
}

func (s *CatalogService) UpdateFuncionario(ctx context.Context, id string, f model.Funcionario) (model.Funcionario, error) {
	f.ID = id
	f.Nome = strings.TrimSpace(f.Nome)
	if err := s.validateFuncionario(ctx, &f); err != nil {
		return model.Funcionario{}, err
	}
	err := s.stores.Funcionarios.Update(ctx, func(items map[string]model.Funcionario) error {
		old, ok := items[id]
		if !ok {
			return ErrNotFound
		}
		f.DataCadastro = old.DataCadastro
		items[id] = f
		return nil
	})
	if err != nil {
		return model.Funcionario{}, fmt.Errorf("update funcionario: %w", err)
	}
	return f, nil
}

func (s *CatalogService) DeleteFuncionario(ctx context.Context, id string) error {
	found, err := s.stores.Funcionarios.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete funcionario: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	logger.Info("funcionario.deleted", "id", id)
	return nil
}

func (s *CatalogService) validateFuncionario(ctx context.Context, f *model.Funcionario) error {
	v := Violations{}
	v.Required("nome", f.Nome)
	v.Required("funcao", f.Funcao)
	if f.Obras == nil {
		f.Obras = []string{}
	}
	if f.ObraAtual != "" || len(f.Obras) > 0 {
		obras, err := s.stores.Obras.Load(ctx)
		if err != nil {
			return fmt.Errorf("load obras: %w", err)
		}
		if _, ok := obras[f.ObraAtual]; f.ObraAtual != "" && !ok {
			v.Add("obra_atual", "unknown_obra")
		}
		for _, o := range f.Obras {
			if _, ok := obras[o]; !ok {
				v.Add("obras", "unknown_obra")
				break
			}
		}
	}
	return v.Err()
}

// ---- equipes ----

func (s *CatalogService) ListEquipes(ctx context.Context) ([]model.Equipe, error) {
	items, err := s.stores.Equipes.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list equipes: %w", err)
	}
	return sortedByKey(items, func(e *model.Equipe, k string) { e.Nome = k }), nil
}

func (s *CatalogService) GetEquipe(ctx context.Context, name string) (model.Equipe, error) {
	e, ok, err := s.stores.Equipes.Get(ctx, name)
	if err != nil {
		return model.Equipe{}, fmt.Errorf("get equipe: %w", err)
	}
	if !ok {
		return model.Equipe{}, ErrNotFound
	}
	e.Nome = name
	return e, nil
}

func (s *CatalogService) CreateEquipe(ctx context.Context, e model.Equipe) (model.Equipe, error) {
	e.Nome = strings.TrimSpace(e.Nome)
	if err := s.validateEquipe(ctx, &e); err != nil {
		return model.Equipe{}, err
	}
	e.DataCriacao = s.now().Format(datefmt.Timestamp)
	err := s.stores.Equipes.Update(ctx, func(items map[string]model.Equipe) error {
		if _, exists := items[e.Nome]; exists {
			return ErrConflict
		}
		items[e.Nome] = e
		return nil
	})
	if err != nil {
		return model.Equipe{}, fmt.Errorf("create equipe: %w", err)
	}
	logger.Info("equipe.created", "equipe", e.Nome, "obra", e.Obra)
	return e, nil
}

func (s *CatalogService) UpdateEquipe(ctx context.Context, name string, e model.Equipe) (model.Equipe, error) {
	e.Nome = name
	if err := s.validateEquipe(ctx, &e); err != nil {
		return model.Equipe{}, err
	}
	err := s.stores.Equipes.Update(ctx, func(items map[string]model.Equipe) error {
		old, ok := items[name]
		if !ok {
			return ErrNotFound
		}
		e.DataCriacao = old.DataCriacao
		items[name] = e
		return nil
	})
	if err != nil {
		return model.Equipe{}, fmt.Errorf("update equipe: %w", err)
	}
	return e, nil
}

func (s *CatalogService) DeleteEquipe(ctx context.Context, name string) error {
	found, err := s.stores.Equipes.Delete(ctx, name)
	if err != nil {
		return fmt.Errorf("delete equipe: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	logger.Info("equipe.deleted", "equipe", name)
	return nil
}

// validateEquipe requires an existing obra and registered members. A leader
// that is not listed as a member is added to the members.
func (s *CatalogService) validateEquipe(ctx context.Context, e *model.Equipe) error {
	v := Violations{}
	v.Required("nome", e.Nome)
	v.Required("obra", e.Obra)
	if e.Membros == nil {
		e.Membros = []string{}
	}
	obras, err := s.stores.Obras.Load(ctx)
	if err != nil {
		return fmt.Errorf("load obras: %w", err)
	}
	if _, ok := obras[e.Obra]; e.Obra != "" && !ok {
		v.Add("obra", "unknown_obra")
	}
	funcs, err := s.stores.Funcionarios.Load(ctx)
	if err != nil {
		return fmt.Errorf("load funcionarios: %w", err)
	}
	for _, m := range e.Membros {
		if _, ok := funcs[m]; !ok {
			v.Add("membros", "unknown_funcionario")
			break
		}
	}
	if e.Lider != "" {
		if _, ok := funcs[e.Lider]; !ok {
			v.Add("lider", "unknown_funcionario")
		} else if !contains(e.Membros, e.Lider) {
			e.Membros = append(e.Membros, e.Lider)
		}
	}
	return v.Err()
}

// FuncionarioExists reports whether name matches a registered employee by id
// or by name.
func (s *CatalogService) FuncionarioExists(ctx context.Context, name string) (bool, error) {
	funcs, err := s.stores.Funcionarios.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load funcionarios: %w", err)
	}
	if _, ok := funcs[name]; ok {
		return true, nil
	}
	for _, f := range funcs {
		if f.Nome == name {
			return true, nil
		}
	}
	return false, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

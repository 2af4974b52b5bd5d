package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"obra-rdo/internal/datefmt"
	"obra-rdo/internal/model"
	"obra-rdo/internal/store"
)

const (
	StatusNotStarted = "Não iniciada"
	StatusInProgress = "Em andamento"
	StatusDone       = "Concluída"
)

type DashboardService struct {
	stores *store.Stores
	now    func() time.Time
}

func NewDashboardService(stores *store.Stores) *DashboardService {
	return &DashboardService{stores: stores, now: time.Now}
}

func (s *DashboardService) Build(ctx context.Context) (model.Dashboard, error) {
	obras, err := s.stores.Obras.Load(ctx)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("load obras: %w", err)
	}
	equipes, err := s.stores.Equipes.Load(ctx)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("load equipes: %w", err)
	}
	funcs, err := s.stores.Funcionarios.Load(ctx)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("load funcionarios: %w", err)
	}
	reports, err := s.stores.Relatorios.Load(ctx)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("load reports: %w", err)
	}

	teams := map[string][]string{}
	for name, e := range equipes {
		teams[e.Obra] = append(teams[e.Obra], name)
	}

	today := datefmt.DateOf(s.now())
	d := model.Dashboard{
		TotalObras:        len(obras),
		TotalEquipes:      len(equipes),
		TotalFuncionarios: len(funcs),
		TotalRelatorios:   len(reports),
		Obras:             make([]model.ObraStatus, 0, len(obras)),
	}
	for name, o := range obras {
		status, progress := ObraProgress(o, today)
		if status == StatusInProgress {
			d.ObrasEmAndamento++
		}
		t := teams[name]
		sort.Strings(t)
		if t == nil {
			t = []string{}
		}
		d.Obras = append(d.Obras, model.ObraStatus{Nome: name, Status: status, Progresso: progress, Equipes: t})
	}
	sort.Slice(d.Obras, func(i, j int) bool { return d.Obras[i].Nome < d.Obras[j].Nome })
	return d, nil
}

// ObraProgress derives an obra's status on day from its schedule. Progress is
// the share of the schedule elapsed unless a completion percentage was stored.
func ObraProgress(o model.Obra, day time.Time) (string, int) {
	start, err1 := datefmt.Parse(o.PrazoInicio)
	due, err2 := datefmt.Parse(o.PrazoFim)
	if err1 != nil || err2 != nil {
		return StatusNotStarted, o.PercentualConcluido
	}

	var status string
	var progress int
	switch {
	case day.Before(start):
		status, progress = StatusNotStarted, 0
	case day.After(due):
		status, progress = StatusDone, 100
	default:
		status = StatusInProgress
		total := due.Sub(start).Hours() / 24
		if total <= 0 {
			progress = 100
		} else {
			progress = int(day.Sub(start).Hours() / 24 / total * 100)
		}
		if progress > 100 {
			progress = 100
		}
	}
	if o.PercentualConcluido > 0 {
		progress = o.PercentualConcluido
	}
	return status, progress
}

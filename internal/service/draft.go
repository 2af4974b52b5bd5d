package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"obra-rdo/internal/config"
	"obra-rdo/internal/datefmt"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/model"
	"obra-rdo/internal/storage"
)

// draft is one user's report in progress. Uploads stay in memory until Submit.
type draft struct {
	mu        sync.Mutex
	report    model.Relatorio
	uploads   []Upload
	updatedAt time.Time
}

// DraftService holds at most one draft per user. Drafts are never persisted
// and are evicted after ttl without changes.
type DraftService struct {
	reports    *ReportService
	catalog    *CatalogService
	ttl        time.Duration
	maxFiles   int
	maxPending int64
	now        func() time.Time
	drafts     sync.Map // username -> *draft
}

func NewDraftService(reports *ReportService, catalog *CatalogService, cfg config.DraftsConfig) *DraftService {
	return &DraftService{
		reports:    reports,
		catalog:    catalog,
		ttl:        cfg.TTL,
		maxFiles:   cfg.MaxFiles,
		maxPending: cfg.MaxPendingMB << 20,
		now:        time.Now,
	}
}

// StartJanitor evicts idle drafts every interval until ctx is done.
func (s *DraftService) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := s.Sweep(); n > 0 {
					logger.Info("draft.evicted", "count", n)
				}
			}
		}
	}()
}

// Sweep drops drafts idle for longer than the ttl and returns how many.
func (s *DraftService) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	n := 0
	s.drafts.Range(func(k, v any) bool {
		d := v.(*draft)
		d.mu.Lock()
		idle := d.updatedAt.Before(cutoff)
		d.mu.Unlock()
		if idle && s.drafts.CompareAndDelete(k, d) {
			n++
		}
		return true
	})
	return n
}

// Start replaces any draft of p with an empty one dated today. An operational
// user with a single assigned obra gets it preselected.
func (s *DraftService) Start(p model.Principal) model.Draft {
	r := model.Relatorio{
		DataRelatorio:      s.now().Format(datefmt.Canonical),
		ClimaManha:         model.Climas[0],
		ClimaTarde:         model.Climas[0],
		HorariosChuvaManha: fillSlots(nil, model.RainSlotsMorning),
		HorariosChuvaTarde: fillSlots(nil, model.RainSlotsAfternoon),
		Equipe:             []string{},
		Atividades:         []model.Atividade{},
		Ocorrencias:        []model.Ocorrencia{},
		Fotos:              []string{},
	}
	if !p.Nivel.AtLeast(model.RoleManager) && len(p.ObrasAtribuidas) == 1 {
		r.Obra = p.ObrasAtribuidas[0]
	}
	d := &draft{report: r, updatedAt: s.now()}
	s.drafts.Store(p.Username, d)
	logger.Debug("draft.started", "user", p.Username)
	return d.snapshot()
}

func (s *DraftService) Get(p model.Principal) (model.Draft, error) {
	return s.with(p, func(*draft) error { return nil })
}

func (s *DraftService) Discard(p model.Principal) error {
	if _, ok := s.drafts.LoadAndDelete(p.Username); !ok {
		return ErrNotFound
	}
	return nil
}

// with runs fn on p's draft under its lock and returns the resulting state.
func (s *DraftService) with(p model.Principal, fn func(d *draft) error) (model.Draft, error) {
	v, ok := s.drafts.Load(p.Username)
	if !ok {
		return model.Draft{}, ErrNotFound
	}
	d := v.(*draft)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := fn(d); err != nil {
		return model.Draft{}, err
	}
	d.updatedAt = s.now()
	return d.snapshotLocked(), nil
}

func (s *DraftService) Patch(ctx context.Context, p model.Principal, h model.DraftHeader) (model.Draft, error) {
	v := Violations{}
	if h.Obra != nil && *h.Obra != "" {
		if _, err := s.catalog.GetObra(ctx, *h.Obra); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return model.Draft{}, err
			}
			v.Add("obra", "unknown_obra")
		} else if !p.CanAccessObra(*h.Obra) {
			return model.Draft{}, ErrForbidden
		}
	}
	var date string
	if h.DataRelatorio != nil {
		d, err := datefmt.Normalize(*h.DataRelatorio)
		if err != nil {
			v.Add("data_relatorio", "invalid_date")
		}
		date = d
	}
	if h.ClimaManha != nil && !contains(model.Climas, *h.ClimaManha) {
		v.Add("clima_manha", "invalid")
	}
	if h.ClimaTarde != nil && !contains(model.Climas, *h.ClimaTarde) {
		v.Add("clima_tarde", "invalid")
	}
	if h.Temperatura != nil && (*h.Temperatura < -20 || *h.Temperatura > 60) {
		v.Add("temperatura", "out_of_range")
	}
	for slot := range h.HorariosChuvaManha {
		if !contains(model.RainSlotsMorning, slot) {
			v.Add("horarios_chuva_manha", "unknown_slot")
		}
	}
	for slot := range h.HorariosChuvaTarde {
		if !contains(model.RainSlotsAfternoon, slot) {
			v.Add("horarios_chuva_tarde", "unknown_slot")
		}
	}
	if err := v.Err(); err != nil {
		return model.Draft{}, err
	}

	return s.with(p, func(d *draft) error {
		r := &d.report
		if h.Obra != nil {
			r.Obra = *h.Obra
		}
		if h.DataRelatorio != nil {
			r.DataRelatorio = date
		}
		if h.ClimaManha != nil {
			r.ClimaManha = *h.ClimaManha
		}
		if h.ClimaTarde != nil {
			r.ClimaTarde = *h.ClimaTarde
		}
		if h.Temperatura != nil {
			r.Temperatura = *h.Temperatura
		}
		for slot, rain := range h.HorariosChuvaManha {
			r.HorariosChuvaManha[slot] = rain
		}
		for slot, rain := range h.HorariosChuvaTarde {
			r.HorariosChuvaTarde[slot] = rain
		}
		if h.Equipamentos != nil {
			r.Equipamentos = *h.Equipamentos
		}
		if h.ObsEquipe != nil {
			r.ObsEquipe = *h.ObsEquipe
		}
		if h.ObservacoesGerais != nil {
			r.ObservacoesGerais = *h.ObservacoesGerais
		}
		return nil
	})
}

// AddCrew adds a registered employee to the crew present on the day.
func (s *DraftService) AddCrew(ctx context.Context, p model.Principal, name string) (model.Draft, error) {
	ok, err := s.catalog.FuncionarioExists(ctx, name)
	if err != nil {
		return model.Draft{}, err
	}
	if !ok {
		return model.Draft{}, (Violations{"funcionario": "unknown_funcionario"}).Err()
	}
	return s.with(p, func(d *draft) error {
		if contains(d.report.Equipe, name) {
			return ErrConflict
		}
		d.report.Equipe = append(d.report.Equipe, name)
		return nil
	})
}

func (s *DraftService) RemoveCrew(p model.Principal, index int) (model.Draft, error) {
	return s.with(p, func(d *draft) error {
		if index < 0 || index >= len(d.report.Equipe) {
			return ErrNotFound
		}
		d.report.Equipe = append(d.report.Equipe[:index], d.report.Equipe[index+1:]...)
		return nil
	})
}

func (s *DraftService) AddActivity(p model.Principal, a model.Atividade) (model.Draft, error) {
	if a.Status == "" {
		a.Status = model.StatusAtividade[0]
	}
	v := Violations{}
	v.Required("descricao", a.Descricao)
	if !contains(model.StatusAtividade, a.Status) {
		v.Add("status", "invalid")
	}
	if err := v.Err(); err != nil {
		return model.Draft{}, err
	}
	a.Anexos = []string{}
	return s.with(p, func(d *draft) error {
		d.report.Atividades = append(d.report.Atividades, a)
		return nil
	})
}

func (s *DraftService) RemoveActivity(p model.Principal, index int) (model.Draft, error) {
	return s.with(p, func(d *draft) error {
		if index < 0 || index >= len(d.report.Atividades) {
			return ErrNotFound
		}
		d.report.Atividades = append(d.report.Atividades[:index], d.report.Atividades[index+1:]...)
		d.dropUploads(storage.KindActivity, index)
		return nil
	})
}

func (s *DraftService) AddIncident(p model.Principal, o model.Ocorrencia) (model.Draft, error) {
	if o.Gravidade == "" {
		o.Gravidade = model.GravidadeOcorrencia[0]
	}
	v := Violations{}
	v.Required("descricao", o.Descricao)
	if !contains(model.GravidadeOcorrencia, o.Gravidade) {
		v.Add("gravidade", "invalid")
	}
	if err := v.Err(); err != nil {
		return model.Draft{}, err
	}
	o.Anexos = []string{}
	return s.with(p, func(d *draft) error {
		d.report.Ocorrencias = append(d.report.Ocorrencias, o)
		return nil
	})
}

func (s *DraftService) RemoveIncident(p model.Principal, index int) (model.Draft, error) {
	return s.with(p, func(d *draft) error {
		if index < 0 || index >= len(d.report.Ocorrencias) {
			return ErrNotFound
		}
		d.report.Ocorrencias = append(d.report.Ocorrencias[:index], d.report.Ocorrencias[index+1:]...)
		d.dropUploads(storage.KindIncident, index)
		return nil
	})
}

func (s *DraftService) SetMaterials(p model.Principal, m model.Materiais) (model.Draft, error) {
	return s.with(p, func(d *draft) error {
		r := &d.report
		r.RecebimentoMateriaisSim = m.RecebimentoSim
		r.MateriaisRecebidos = ""
		if m.RecebimentoSim {
			r.MateriaisRecebidos = m.MateriaisRecebidos
		}
		r.NecessidadeMateriaisSim = m.NecessidadeSim
		r.MateriaisNecessarios = ""
		r.MateriaisUrgentes = false
		if m.NecessidadeSim {
			r.MateriaisNecessarios = m.MateriaisNecessarios
			r.MateriaisUrgentes = m.Urgente
		}
		return nil
	})
}

// AttachFile buffers an upload for an activity, an incident or the general
// photos. Index is ignored for photos. A draft holds at most maxFiles uploads
// and maxPending bytes; a zero limit is not enforced.
func (s *DraftService) AttachFile(p model.Principal, kind string, index int, filename string, data []byte) (model.Draft, error) {
	if !storage.ValidKind(kind) {
		return model.Draft{}, (Violations{"kind": "invalid"}).Err()
	}
	if len(data) == 0 {
		return model.Draft{}, (Violations{"file": "empty"}).Err()
	}
	return s.with(p, func(d *draft) error {
		if s.maxFiles > 0 && len(d.uploads) >= s.maxFiles {
			return fmt.Errorf("draft holds %d files: %w", len(d.uploads), ErrTooLarge)
		}
		if s.maxPending > 0 && d.pendingBytes()+int64(len(data)) > s.maxPending {
			return fmt.Errorf("draft uploads over %d MB: %w", s.maxPending>>20, ErrTooLarge)
		}
		switch kind {
		case storage.KindActivity:
			if index < 0 || index >= len(d.report.Atividades) {
				return (Violations{"index": "unknown_activity"}).Err()
			}
		case storage.KindIncident:
			if index < 0 || index >= len(d.report.Ocorrencias) {
				return (Violations{"index": "unknown_incident"}).Err()
			}
		default:
			index = 0
			for _, u := range d.uploads {
				if u.Kind == storage.KindPhoto {
					index++
				}
			}
		}
		d.uploads = append(d.uploads, Upload{Kind: kind, Index: index, Filename: filename, Data: data})
		return nil
	})
}

// Submit stores the draft as a report and discards it. On failure the draft
// is kept so the user can fix it.
func (s *DraftService) Submit(ctx context.Context, p model.Principal) (model.Relatorio, error) {
	v, ok := s.drafts.Load(p.Username)
	if !ok {
		return model.Relatorio{}, ErrNotFound
	}
	d := v.(*draft)
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := s.reports.Create(ctx, copyReport(d.report), p, d.uploads)
	if err != nil {
		return model.Relatorio{}, fmt.Errorf("submit draft: %w", err)
	}
	s.drafts.CompareAndDelete(p.Username, d)
	return r, nil
}

// dropUploads removes the uploads of one list entry and shifts the ones after it.
func (d *draft) dropUploads(kind string, index int) {
	kept := d.uploads[:0]
	for _, u := range d.uploads {
		if u.Kind == kind {
			if u.Index == index {
				continue
			}
			if u.Index > index {
				u.Index--
			}
		}
		kept = append(kept, u)
	}
	d.uploads = kept
}

func (d *draft) pendingBytes() int64 {
	var n int64
	for _, u := range d.uploads {
		n += int64(len(u.Data))
	}
	return n
}

func (d *draft) snapshot() model.Draft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *draft) snapshotLocked() model.Draft {
	pending := make([]model.PendingUpload, len(d.uploads))
	for i, u := range d.uploads {
		pending[i] = model.PendingUpload{Kind: u.Kind, Index: u.Index, Filename: u.Filename, Size: len(u.Data)}
	}
	return model.Draft{
		Report:    copyReport(d.report),
		Pending:   pending,
		UpdatedAt: d.updatedAt.Format(datefmt.Timestamp),
	}
}

// copyReport returns r with no slice or map shared with the original.
func copyReport(r model.Relatorio) model.Relatorio {
	r.Equipe = append([]string{}, r.Equipe...)
	r.Fotos = append([]string{}, r.Fotos...)
	acts := make([]model.Atividade, len(r.Atividades))
	for i, a := range r.Atividades {
		a.Anexos = append([]string{}, a.Anexos...)
		acts[i] = a
	}
	r.Atividades = acts
	incs := make([]model.Ocorrencia, len(r.Ocorrencias))
	for i, o := range r.Ocorrencias {
		o.Anexos = append([]string{}, o.Anexos...)
		incs[i] = o
	}
	r.Ocorrencias = incs
	r.HorariosChuvaManha = copySlots(r.HorariosChuvaManha)
	r.HorariosChuvaTarde = copySlots(r.HorariosChuvaTarde)
	return r
}

func copySlots(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

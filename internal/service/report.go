package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"obra-rdo/internal/datefmt"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/model"
	"obra-rdo/internal/storage"
	"obra-rdo/internal/store"
)

// Upload is an attachment waiting to be written with its report.
type Upload struct {
	Kind     string
	Index    int
	Filename string
	Data     []byte
}

type ReportService struct {
	stores *store.Stores
	files  *storage.Attachments
	now    func() time.Time
	newID  func() string
}

func NewReportService(stores *store.Stores, files *storage.Attachments) *ReportService {
	return &ReportService{stores: stores, files: files, now: time.Now, newID: uuid.NewString}
}

// NextNumber is the number the next created report will get.
func (s *ReportService) NextNumber(ctx context.Context) (int, error) {
	items, unreadable, err := s.stores.Relatorios.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load reports: %w", err)
	}
	return int(nextNumber(items, unreadable)), nil
}

// nextNumber also counts records that no longer decode, so their numbers are
// never handed out again.
func nextNumber(items map[string]model.Relatorio, unreadable map[string]json.RawMessage) model.NumeroRDO {
	var max model.NumeroRDO
	for _, r := range items {
		if r.NumeroRDO > max {
			max = r.NumeroRDO
		}
	}
	for _, raw := range unreadable {
		var head struct {
			NumeroRDO model.NumeroRDO `json:"numero_rdo"`
		}
		if json.Unmarshal(raw, &head) == nil && head.NumeroRDO > max {
			max = head.NumeroRDO
		}
	}
	return max + 1
}

// Create stores a new report written by creator. Uploads are saved under the
// new report id first; the number is assigned in the same locked update that
// inserts the record.
func (s *ReportService) Create(ctx context.Context, r model.Relatorio, creator model.Principal, uploads []Upload) (model.Relatorio, error) {
	kept, err := s.validate(ctx, &r, creator)
	if err != nil {
		return model.Relatorio{}, err
	}
	r.ID = s.newID()
	r.DataCriacao = s.now().Format(datefmt.Timestamp)
	r.IDUsuarioCriacao = creator.Username
	r.NomeUsuarioCriacao = creator.NomeCompleto
	if r.NomeUsuarioCriacao == "" {
		r.NomeUsuarioCriacao = creator.Username
	}

	for _, up := range uploads {
		if up.Kind == storage.KindActivity {
			if up.Index < 0 || up.Index >= len(kept) || kept[up.Index] < 0 {
				continue
			}
			up.Index = kept[up.Index]
		}
		if err := s.attach(&r, up); err != nil {
			s.discardFiles(r.ID)
			return model.Relatorio{}, err
		}
	}

	err = s.stores.Relatorios.UpdateAll(ctx, func(items map[string]model.Relatorio, unreadable map[string]json.RawMessage) error {
		r.NumeroRDO = nextNumber(items, unreadable)
		items[r.ID] = r
		return nil
	})
	if err != nil {
		s.discardFiles(r.ID)
		return model.Relatorio{}, fmt.Errorf("create report: %w", err)
	}
	logger.Info("report.created", "id", r.ID, "numero", int(r.NumeroRDO), "obra", r.Obra,
		"user", creator.Username, "attachments", len(uploads))
	return r, nil
}

func (s *ReportService) attach(r *model.Relatorio, up Upload) error {
	var slot *[]string
	switch up.Kind {
	case storage.KindActivity:
		if up.Index < 0 || up.Index >= len(r.Atividades) {
			return (Violations{"anexos": "unknown_activity"}).Err()
		}
		slot = &r.Atividades[up.Index].Anexos
	case storage.KindIncident:
		if up.Index < 0 || up.Index >= len(r.Ocorrencias) {
			return (Violations{"anexos": "unknown_incident"}).Err()
		}
		slot = &r.Ocorrencias[up.Index].Anexos
	case storage.KindPhoto:
		up.Index = len(r.Fotos)
		slot = &r.Fotos
	default:
		return (Violations{"anexos": "invalid_kind"}).Err()
	}
	rel, err := s.files.Save(bytes.NewReader(up.Data), r.ID, up.Kind, up.Index, up.Filename)
	if err != nil {
		return fmt.Errorf("save attachment: %w", err)
	}
	*slot = append(*slot, rel)
	return nil
}

func (s *ReportService) discardFiles(id string) {
	if err := s.files.DeleteReport(id); err != nil {
		logger.Warn("report.attachments_cleanup_failed", "id", id, "err", err)
	}
}

// validate checks what a report needs before it can be stored and fills in
// defaults for the optional sections. Activities without a description are
// dropped; kept maps each original activity index to its new one, or -1.
func (s *ReportService) validate(ctx context.Context, r *model.Relatorio, creator model.Principal) ([]int, error) {
	v := Violations{}
	r.Obra = strings.TrimSpace(r.Obra)
	if r.Obra == "" {
		v.Add("obra", "required")
	} else {
		_, ok, err := s.stores.Obras.Get(ctx, r.Obra)
		if err != nil {
			return nil, fmt.Errorf("load obra: %w", err)
		}
		if !ok {
			v.Add("obra", "unknown_obra")
		} else if !creator.CanAccessObra(r.Obra) {
			return nil, ErrForbidden
		}
	}
	if d, err := datefmt.Normalize(r.DataRelatorio); err != nil {
		v.Add("data_relatorio", "invalid_date")
	} else {
		r.DataRelatorio = d
	}

	kept := make([]int, len(r.Atividades))
	acts := make([]model.Atividade, 0, len(r.Atividades))
	for i, a := range r.Atividades {
		kept[i] = -1
		if strings.TrimSpace(a.Descricao) == "" {
			continue
		}
		a.Anexos = append([]string{}, a.Anexos...)
		kept[i] = len(acts)
		acts = append(acts, a)
	}
	r.Atividades = acts
	if len(r.Atividades) == 0 {
		v.Add("atividades", "required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	incs := make([]model.Ocorrencia, len(r.Ocorrencias))
	for i, o := range r.Ocorrencias {
		o.Anexos = append([]string{}, o.Anexos...)
		incs[i] = o
	}
	r.Ocorrencias = incs
	r.Equipe = append([]string{}, r.Equipe...)
	r.Fotos = append([]string{}, r.Fotos...)
	r.HorariosChuvaManha = fillSlots(r.HorariosChuvaManha, model.RainSlotsMorning)
	r.HorariosChuvaTarde = fillSlots(r.HorariosChuvaTarde, model.RainSlotsAfternoon)
	return kept, nil
}

func fillSlots(m map[string]bool, slots []string) map[string]bool {
	out := make(map[string]bool, len(slots))
	for _, s := range slots {
		out[s] = m[s]
	}
	return out
}

func (s *ReportService) Get(ctx context.Context, id string, viewer model.Principal) (model.Relatorio, error) {
	r, ok, err := s.stores.Relatorios.Get(ctx, id)
	if err != nil {
		return model.Relatorio{}, fmt.Errorf("get report: %w", err)
	}
	if !ok {
		return model.Relatorio{}, ErrNotFound
	}
	if !viewer.CanAccessObra(r.Obra) {
		return model.Relatorio{}, ErrForbidden
	}
	if r.ID == "" {
		r.ID = id
	}
	return r, nil
}

// List returns the reports viewer may see that match f, newest first. When a
// date range is given, reports whose date cannot be parsed are skipped.
func (s *ReportService) List(ctx context.Context, f model.ReportFilter, viewer model.Principal) ([]model.Relatorio, error) {
	var from, to time.Time
	v := Violations{}
	if f.From != "" {
		t, err := datefmt.Parse(f.From)
		if err != nil {
			v.Add("de", "invalid_date")
		}
		from = t
	}
	if f.To != "" {
		t, err := datefmt.Parse(f.To)
		if err != nil {
			v.Add("ate", "invalid_date")
		}
		to = t
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	items, err := s.stores.Relatorios.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := make([]model.Relatorio, 0, len(items))
	for id, r := range items {
		if r.ID == "" {
			r.ID = id
		}
		if !viewer.CanAccessObra(r.Obra) {
			continue
		}
		if f.Obra != "" && r.Obra != f.Obra {
			continue
		}
		if !from.IsZero() || !to.IsZero() {
			d, err := datefmt.Parse(r.DataRelatorio)
			if err != nil {
				logger.Warn("report.bad_date", "id", r.ID, "data_relatorio", r.DataRelatorio)
				continue
			}
			if (!from.IsZero() && d.Before(from)) || (!to.IsZero() && d.After(to)) {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DataCriacao != out[j].DataCriacao {
			return out[i].DataCriacao > out[j].DataCriacao
		}
		return out[i].NumeroRDO > out[j].NumeroRDO
	})
	return out, nil
}

// Delete removes the report and then its attachment directory.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	found, err := s.stores.Relatorios.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	if err := s.files.DeleteReport(id); err != nil {
		return fmt.Errorf("delete report attachments: %w", err)
	}
	logger.Info("report.deleted", "id", id)
	return nil
}

// NormalizeDates rewrites every parseable report date to the canonical
// layout. It returns how many records changed and the ids that could not be
// parsed.
func (s *ReportService) NormalizeDates(ctx context.Context) (int, []string, error) {
	changed := 0
	var bad []string
	err := s.stores.Relatorios.Update(ctx, func(items map[string]model.Relatorio) error {
		for id, r := range items {
			d, err := datefmt.Normalize(r.DataRelatorio)
			if err != nil {
				bad = append(bad, id)
				continue
			}
			if d != r.DataRelatorio {
				r.DataRelatorio = d
				items[id] = r
				changed++
			}
		}
		if changed == 0 {
			return errSkip
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSkip) {
		return 0, nil, fmt.Errorf("normalize dates: %w", err)
	}
	sort.Strings(bad)
	return changed, bad, nil
}

// NumberCheck summarizes the report numbering.
type NumberCheck struct {
	Max        int
	Duplicates map[int][]string
	Missing    []int
	Unnumbered []string
}

func (s *ReportService) CheckNumbers(ctx context.Context) (NumberCheck, error) {
	items, err := s.stores.Relatorios.Load(ctx)
	if err != nil {
		return NumberCheck{}, fmt.Errorf("load reports: %w", err)
	}
	byNum := map[int][]string{}
	res := NumberCheck{Duplicates: map[int][]string{}}
	for id, r := range items {
		n := int(r.NumeroRDO)
		if n == 0 {
			res.Unnumbered = append(res.Unnumbered, id)
			continue
		}
		byNum[n] = append(byNum[n], id)
		if n > res.Max {
			res.Max = n
		}
	}
	for n := 1; n <= res.Max; n++ {
		ids := byNum[n]
		switch {
		case len(ids) == 0:
			res.Missing = append(res.Missing, n)
		case len(ids) > 1:
			sort.Strings(ids)
			res.Duplicates[n] = ids
		}
	}
	sort.Strings(res.Unnumbered)
	return res, nil
}

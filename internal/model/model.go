package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Collection names, one stored document each.
const (
	CollObras        = "obras"
	CollFuncionarios = "funcionarios"
	CollEquipes      = "equipes"
	CollUsuarios     = "usuarios"
	CollRelatorios   = "relatorios"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "gerente"
	RoleOperational Role = "operacional"
)

var roleRank = map[Role]int{RoleOperational: 1, RoleManager: 2, RoleAdmin: 3}

// ParseRole maps stored access levels, including the retired ones, to a tier.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "gerente", "manager", "arquiteto":
		return RoleManager, true
	case "operacional", "operational", "engenheiro", "usuario", "encarregado":
		return RoleOperational, true
	}
	return "", false
}

func (r Role) AtLeast(min Role) bool { return roleRank[r] >= roleRank[min] }

func (r Role) Valid() bool { return roleRank[r] > 0 }

type Obra struct {
	Nome                string `json:"nome,omitempty"`
	Endereco            string `json:"endereco"`
	ResponsavelTecnico  string `json:"responsavel_tecnico"`
	RRT                 string `json:"rrt"`
	PrazoInicio         string `json:"prazo_inicio"`
	PrazoFim            string `json:"prazo_fim"`
	Status              string `json:"status,omitempty"`
	PercentualConcluido int    `json:"percentual_concluido,omitempty"`
	DataCadastro        string `json:"data_cadastro,omitempty"`
}

// UnmarshalJSON reads percentual_concluido written as a float.
func (o *Obra) UnmarshalJSON(data []byte) error {
	type plain Obra
	aux := struct {
		*plain
		Percentual looseInt `json:"percentual_concluido"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.PercentualConcluido = int(aux.Percentual)
	return nil
}

type Funcionario struct {
	ID           string   `json:"id,omitempty"`
	Nome         string   `json:"nome"`
	Funcao       string   `json:"funcao"`
	Contato      string   `json:"contato,omitempty"`
	ObraAtual    string   `json:"obra_atual,omitempty"`
	Obras        []string `json:"obras"`
	DataCadastro string   `json:"data_cadastro,omitempty"`
}

type Equipe struct {
	Nome        string   `json:"nome"`
	Obra        string   `json:"obra"`
	Lider       string   `json:"lider,omitempty"`
	Membros     []string `json:"membros"`
	DataCriacao string   `json:"data_criacao,omitempty"`
}

type Usuario struct {
	Senha                string   `json:"senha"`
	Nivel                Role     `json:"nivel_acesso"`
	NomeCompleto         string   `json:"nome_completo"`
	PrimeiroAcesso       bool     `json:"primeiro_acesso"`
	ObrasAtribuidas      []string `json:"obras_atribuidas,omitempty"`
	Ativo                bool     `json:"ativo"`
	Bootstrap            bool     `json:"bootstrap,omitempty"`
	UltimaAlteracaoSenha string   `json:"ultima_alteracao_senha,omitempty"`
	DataCriacao          string   `json:"data_criacao,omitempty"`
}

// UnmarshalJSON accepts both the "nivel" and "nivel_acesso" keys and treats a
// missing "ativo" as active.
func (u *Usuario) UnmarshalJSON(data []byte) error {
	type plain Usuario
	aux := struct {
		*plain
		Nivel       string `json:"nivel_acesso"`
		NivelLegacy string `json:"nivel"`
		Ativo       *bool  `json:"ativo"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	level := aux.Nivel
	if level == "" {
		level = aux.NivelLegacy
	}
	if r, ok := ParseRole(level); ok {
		u.Nivel = r
	} else {
		u.Nivel = RoleOperational
	}
	u.Ativo = aux.Ativo == nil || *aux.Ativo
	return nil
}

// CanAccessObra reports whether the user may read and write reports of obra.
func (u Usuario) CanAccessObra(obra string) bool {
	if u.Nivel.AtLeast(RoleManager) {
		return true
	}
	for _, o := range u.ObrasAtribuidas {
		if o == obra {
			return true
		}
	}
	return false
}

// looseInt decodes a JSON number, float or numeric string, rounding to the
// nearest integer. Anything else decodes to zero.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}
	*n = looseInt(math.Round(f))
	return nil
}

// NumeroRDO is stored as a JSON number by current code and as a digit string
// by older versions. Anything else decodes to zero.
type NumeroRDO int

func (n *NumeroRDO) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		*n = 0
		return nil
	}
	*n = NumeroRDO(v)
	return nil
}

type Atividade struct {
	Descricao   string   `json:"descricao"`
	Status      string   `json:"status"`
	Responsavel string   `json:"responsavel,omitempty"`
	Anexos      []string `json:"anexos"`
}

type Ocorrencia struct {
	Descricao string   `json:"descricao"`
	Gravidade string   `json:"gravidade"`
	Resolucao string   `json:"resolucao,omitempty"`
	Anexos    []string `json:"anexos"`
}

// Relatorio is one daily report (RDO).
type Relatorio struct {
	ID                      string          `json:"id"`
	NumeroRDO               NumeroRDO       `json:"numero_rdo"`
	Obra                    string          `json:"obra"`
	DataRelatorio           string          `json:"data_relatorio"`
	DataCriacao             string          `json:"data_criacao"`
	IDUsuarioCriacao        string          `json:"id_usuario_criacao"`
	NomeUsuarioCriacao      string          `json:"nome_usuario_criacao"`
	ClimaManha              string          `json:"clima_manha"`
	ClimaTarde              string          `json:"clima_tarde"`
	Temperatura             int             `json:"temperatura"`
	HorariosChuvaManha      map[string]bool `json:"horarios_chuva_manha"`
	HorariosChuvaTarde      map[string]bool `json:"horarios_chuva_tarde"`
	Equipe                  []string        `json:"equipe"`
	Equipamentos            string          `json:"equipamentos"`
	ObsEquipe               string          `json:"obs_equipe"`
	Atividades              []Atividade     `json:"atividades"`
	Ocorrencias             []Ocorrencia    `json:"ocorrencias"`
	RecebimentoMateriaisSim bool            `json:"recebimento_materiais_sim"`
	MateriaisRecebidos      string          `json:"materiais_recebidos"`
	NecessidadeMateriaisSim bool            `json:"necessidade_materiais_sim"`
	MateriaisNecessarios    string          `json:"materiais_necessarios"`
	MateriaisUrgentes       bool            `json:"materiais_urgentes"`
	ObservacoesGerais       string          `json:"observacoes_gerais"`
	Fotos                   []string        `json:"fotos"`
}

// UnmarshalJSON reads temperatura written as a float, as older versions did.
func (r *Relatorio) UnmarshalJSON(data []byte) error {
	type plain Relatorio
	aux := struct {
		*plain
		Temperatura looseInt `json:"temperatura"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Temperatura = int(aux.Temperatura)
	return nil
}

// UnmarshalJSON folds the single "anexo" path of older records into Anexos.
func (a *Atividade) UnmarshalJSON(data []byte) error {
	type plain Atividade
	aux := struct {
		*plain
		Anexo *string `json:"anexo"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Anexos = withLegacyAttachment(a.Anexos, aux.Anexo)
	return nil
}

func (o *Ocorrencia) UnmarshalJSON(data []byte) error {
	type plain Ocorrencia
	aux := struct {
		*plain
		Anexo *string `json:"anexo"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Anexos = withLegacyAttachment(o.Anexos, aux.Anexo)
	return nil
}

func withLegacyAttachment(list []string, legacy *string) []string {
	if legacy == nil || strings.TrimSpace(*legacy) == "" {
		return list
	}
	for _, p := range list {
		if p == *legacy {
			return list
		}
	}
	return append(list, *legacy)
}

// AttachmentPaths lists every attachment the report references.
func (r Relatorio) AttachmentPaths() []string {
	var out []string
	for _, a := range r.Atividades {
		out = append(out, a.Anexos...)
	}
	for _, o := range r.Ocorrencias {
		out = append(out, o.Anexos...)
	}
	return append(out, r.Fotos...)
}

// Rain slots as filled in on the form.
var (
	RainSlotsMorning   = []string{"7h-9h", "9h-11h", "11h-13h"}
	RainSlotsAfternoon = []string{"13h-15h", "15h-17h", "17h-19h"}
)

var (
	Climas              = []string{"Ensolarado", "Parcialmente nublado", "Nublado", "Chuvoso", "Tempestade"}
	StatusAtividade     = []string{"Não iniciada", "Em Andamento", "Concluída", "Paralisada"}
	GravidadeOcorrencia = []string{"Baixa", "Média", "Alta"}
)

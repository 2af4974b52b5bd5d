package model

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token              string `json:"token"`
	User               User   `json:"user"`
	MustChangePassword bool   `json:"must_change_password"`
}

type ChangePasswordRequest struct {
	Current string `json:"current" binding:"required"`
	New     string `json:"new" binding:"required"`
	Confirm string `json:"confirm" binding:"required"`
}

// User is the public view of a Usuario; the password hash never leaves the server.
type User struct {
	Username        string   `json:"username"`
	Name            string   `json:"name"`
	Role            Role     `json:"role"`
	FirstAccess     bool     `json:"first_access"`
	Active          bool     `json:"active"`
	AssignedObras   []string `json:"assigned_obras"`
	LastPasswordSet string   `json:"last_password_change,omitempty"`
}

func NewUser(username string, u Usuario) User {
	obras := u.ObrasAtribuidas
	if obras == nil {
		obras = []string{}
	}
	return User{
		Username:        username,
		Name:            u.NomeCompleto,
		Role:            u.Nivel,
		FirstAccess:     u.PrimeiroAcesso,
		Active:          u.Ativo,
		AssignedObras:   obras,
		LastPasswordSet: u.UltimaAlteracaoSenha,
	}
}

type CreateUserRequest struct {
	Username      string   `json:"username" binding:"required"`
	Name          string   `json:"name" binding:"required"`
	Role          string   `json:"role" binding:"required"`
	AssignedObras []string `json:"assigned_obras"`
}

type UpdateUserRequest struct {
	Name          *string  `json:"name"`
	Role          *string  `json:"role"`
	AssignedObras []string `json:"assigned_obras"`
	Active        *bool    `json:"active"`
}

// ReportFilter narrows a report listing. Empty fields do not filter.
type ReportFilter struct {
	Obra string `form:"obra"`
	From string `form:"de"`
	To   string `form:"ate"`
}

// DraftHeader carries the single-valued sections of a report being built.
// Nil fields are left as they are.
type DraftHeader struct {
	Obra               *string         `json:"obra"`
	DataRelatorio      *string         `json:"data_relatorio"`
	ClimaManha         *string         `json:"clima_manha"`
	ClimaTarde         *string         `json:"clima_tarde"`
	Temperatura        *int            `json:"temperatura"`
	HorariosChuvaManha map[string]bool `json:"horarios_chuva_manha"`
	HorariosChuvaTarde map[string]bool `json:"horarios_chuva_tarde"`
	Equipamentos       *string         `json:"equipamentos"`
	ObsEquipe          *string         `json:"obs_equipe"`
	ObservacoesGerais  *string         `json:"observacoes_gerais"`
}

type Materiais struct {
	RecebimentoSim       bool   `json:"recebimento_materiais_sim"`
	MateriaisRecebidos   string `json:"materiais_recebidos"`
	NecessidadeSim       bool   `json:"necessidade_materiais_sim"`
	MateriaisNecessarios string `json:"materiais_necessarios"`
	Urgente              bool   `json:"materiais_urgentes"`
}

type CrewRequest struct {
	Funcionario string `json:"funcionario" binding:"required"`
}

// Draft is the report builder state returned to the client.
type Draft struct {
	Report    Relatorio       `json:"relatorio"`
	Pending   []PendingUpload `json:"anexos_pendentes"`
	UpdatedAt string          `json:"atualizado_em"`
}

// PendingUpload is an attachment held in memory until the draft is submitted.
type PendingUpload struct {
	Kind     string `json:"kind"`
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

type ObraStatus struct {
	Nome      string   `json:"nome"`
	Status    string   `json:"status"`
	Progresso int      `json:"progresso"`
	Equipes   []string `json:"equipes"`
}

type Dashboard struct {
	TotalObras        int          `json:"total_obras"`
	TotalEquipes      int          `json:"total_equipes"`
	TotalFuncionarios int          `json:"total_funcionarios"`
	TotalRelatorios   int          `json:"total_relatorios"`
	ObrasEmAndamento  int          `json:"obras_em_andamento"`
	Obras             []ObraStatus `json:"obras"`
}

// Principal is the authenticated user behind a request.
type Principal struct {
	Username string
	Usuario
}

func (p Principal) Public() User { return NewUser(p.Username, p.Usuario) }

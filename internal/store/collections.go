package store

import "obra-rdo/internal/model"

// Stores holds the one Collection per stored entity type. Services share it so
// that every read-modify-write on a collection goes through the same lock.
type Stores struct {
	Obras        *Collection[model.Obra]
	Funcionarios *Collection[model.Funcionario]
	Equipes      *Collection[model.Equipe]
	Usuarios     *Collection[model.Usuario]
	Relatorios   *Collection[model.Relatorio]
}

func NewStores(b Backend) *Stores {
	return &Stores{
		Obras:        NewCollection[model.Obra](b, model.CollObras),
		Funcionarios: NewCollection[model.Funcionario](b, model.CollFuncionarios),
		Equipes:      NewCollection[model.Equipe](b, model.CollEquipes),
		Usuarios:     NewCollection[model.Usuario](b, model.CollUsuarios),
		Relatorios:   NewCollection[model.Relatorio](b, model.CollRelatorios),
	}
}

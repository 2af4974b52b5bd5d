package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"obra-rdo/internal/datefmt"
	"obra-rdo/internal/model"
)

const sheetName = "RDOs"

var xlsxHeader = []interface{}{
	"Nº RDO", "Data", "Obra", "Clima manhã", "Clima tarde", "Temperatura (°C)",
	"Equipe", "Atividades", "Ocorrências", "Materiais recebidos",
	"Materiais necessários", "Urgente", "Observações", "Criado por", "Criado em",
}

// RenderXLSX writes one spreadsheet row per report, in the given order.
func RenderXLSX(w io.Writer, reports []model.Relatorio) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDDDDD"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(xlsxHeader), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, r := range reports {
		row := xlsxRow(r)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(sheetName, "C", "C", 30)
	_ = f.SetColWidth(sheetName, "H", "M", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func xlsxRow(r model.Relatorio) []interface{} {
	acts := make([]string, len(r.Atividades))
	for i, a := range r.Atividades {
		acts[i] = fmt.Sprintf("%s (%s)", a.Descricao, a.Status)
	}
	incs := make([]string, len(r.Ocorrencias))
	for i, o := range r.Ocorrencias {
		incs[i] = fmt.Sprintf("[%s] %s", o.Gravidade, o.Descricao)
	}
	urgent := "Não"
	if r.MateriaisUrgentes {
		urgent = "Sim"
	}
	return []interface{}{
		int(r.NumeroRDO),
		datefmt.ToDisplay(r.DataRelatorio),
		r.Obra,
		r.ClimaManha,
		r.ClimaTarde,
		r.Temperatura,
		strings.Join(r.Equipe, ", "),
		strings.Join(acts, "; "),
		strings.Join(incs, "; "),
		r.MateriaisRecebidos,
		r.MateriaisNecessarios,
		urgent,
		r.ObservacoesGerais,
		r.NomeUsuarioCriacao,
		r.DataCriacao,
	}
}

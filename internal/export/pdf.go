// Package export renders reports as PDF documents and spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phpdave11/gofpdf"

	"obra-rdo/internal/datefmt"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/model"
)

// Opener reads a stored attachment by its relative path.
type Opener func(rel string) (io.ReadCloser, error)

// PDF renders daily reports on A4 pages. When Open is set, JPEG and PNG
// attachments are embedded in a photo section.
type PDF struct {
	Open Opener
}

const (
	pageWidth = 190.0 // A4 minus 10mm margins
	labelW    = 50.0
	lineH     = 6.0
)

// FileName is the name a rendered report is stored under.
func FileName(r model.Relatorio) string {
	return fmt.Sprintf("RDO_%d_%s.pdf", int(r.NumeroRDO), r.ID)
}

// Render writes the report as a PDF document to w.
func (p PDF) Render(w io.Writer, r model.Relatorio, o model.Obra) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("RDO nº %d - página %d/{nb}", int(r.NumeroRDO), pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 9, tr("RELATÓRIO DIÁRIO DE OBRA (RDO)"), "1", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(pageWidth/2, 7, tr(fmt.Sprintf("Nº %d", int(r.NumeroRDO))), "1", 0, "L", false, 0, "")
	pdf.CellFormat(pageWidth/2, 7, tr("Data: "+datefmt.ToDisplay(r.DataRelatorio)), "1", 1, "R", false, 0, "")
	pdf.Ln(3)

	section := func(title string) {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(220, 220, 220)
		pdf.CellFormat(0, 7, tr(title), "1", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
	}
	field := func(label, value string) {
		if value == "" {
			value = "-"
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelW, lineH, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(pageWidth-labelW, lineH, tr(value), "", "L", false)
	}
	text := func(value string) {
		if strings.TrimSpace(value) == "" {
			value = "-"
		}
		pdf.MultiCell(0, lineH, tr(value), "", "L", false)
	}

	section("Dados da obra")
	field("Obra:", r.Obra)
	field("Endereço:", o.Endereco)
	field("Responsável técnico:", o.ResponsavelTecnico)
	field("RRT:", o.RRT)
	field("Prazo:", datefmt.ToDisplay(o.PrazoInicio)+" a "+datefmt.ToDisplay(o.PrazoFim))

	section("Condições climáticas")
	field("Manhã:", r.ClimaManha)
	field("Tarde:", r.ClimaTarde)
	field("Temperatura:", strconv.Itoa(r.Temperatura)+" °C")
	field("Chuva (manhã):", rainSlots(r.HorariosChuvaManha, model.RainSlotsMorning))
	field("Chuva (tarde):", rainSlots(r.HorariosChuvaTarde, model.RainSlotsAfternoon))

	section("Equipe")
	field("Presentes:", strings.Join(r.Equipe, ", "))
	field("Equipamentos:", r.Equipamentos)
	field("Observações:", r.ObsEquipe)

	section("Atividades executadas")
	if len(r.Atividades) == 0 {
		text("")
	}
	for i, a := range r.Atividades {
		line := fmt.Sprintf("%d. %s [%s]", i+1, a.Descricao, a.Status)
		if a.Responsavel != "" {
			line += " - " + a.Responsavel
		}
		if n := len(a.Anexos); n > 0 {
			line += fmt.Sprintf(" (%d anexo(s))", n)
		}
		text(line)
	}

	section("Ocorrências")
	if len(r.Ocorrencias) == 0 {
		text("Nenhuma ocorrência registrada.")
	}
	for i, oc := range r.Ocorrencias {
		text(fmt.Sprintf("%d. [%s] %s", i+1, oc.Gravidade, oc.Descricao))
		if oc.Resolucao != "" {
			text("   Resolução: " + oc.Resolucao)
		}
	}

	section("Materiais")
	received := "Não"
	if r.RecebimentoMateriaisSim {
		received = "Sim: " + r.MateriaisRecebidos
	}
	needed := "Não"
	if r.NecessidadeMateriaisSim {
		needed = "Sim: " + r.MateriaisNecessarios
		if r.MateriaisUrgentes {
			needed += " (URGENTE)"
		}
	}
	field("Recebimento:", received)
	field("Necessidade:", needed)

	section("Observações gerais")
	text(r.ObservacoesGerais)

	if p.Open != nil {
		p.photos(pdf, tr, section, r)
	}

	pdf.Ln(10)
	pdf.CellFormat(0, lineH, tr("Responsável pelo preenchimento: "+r.NomeUsuarioCriacao), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineH, tr("Gerado em: "+r.DataCriacao), "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// photos embeds the report's image attachments. Files that cannot be read or
// decoded are listed by name instead.
func (p PDF) photos(pdf *gofpdf.Fpdf, tr func(string) string, section func(string), r model.Relatorio) {
	paths := r.AttachmentPaths()
	if len(paths) == 0 {
		return
	}
	section("Registro fotográfico")
	for _, rel := range paths {
		kind := imageType(rel)
		if kind == "" {
			pdf.MultiCell(0, lineH, tr(path.Base(rel)), "", "L", false)
			continue
		}
		rc, err := p.Open(rel)
		if err != nil {
			logger.Warn("pdf.attachment_missing", "path", rel, "err", err)
			pdf.MultiCell(0, lineH, tr(path.Base(rel)+" (indisponível)"), "", "L", false)
			continue
		}
		opt := gofpdf.ImageOptions{ImageType: kind}
		pdf.RegisterImageOptionsReader(rel, opt, rc)
		rc.Close()
		if !pdf.Ok() {
			logger.Warn("pdf.attachment_invalid", "path", rel, "err", pdf.Error())
			pdf.ClearError()
			pdf.MultiCell(0, lineH, tr(path.Base(rel)+" (inválido)"), "", "L", false)
			continue
		}
		pdf.ImageOptions(rel, 10, pdf.GetY(), 80, 0, true, opt, 0, "")
		pdf.Ln(2)
	}
}

func imageType(rel string) string {
	switch strings.ToLower(path.Ext(rel)) {
	case ".jpg", ".jpeg":
		return "JPG"
	case ".png":
		return "PNG"
	}
	return ""
}

func rainSlots(m map[string]bool, slots []string) string {
	var out []string
	for _, s := range slots {
		if m[s] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return "Sem chuva"
	}
	return strings.Join(out, ", ")
}

// Write renders the report into dir under FileName and returns the path. The
// file is rendered under a temporary name and renamed into place, so a reader
// of dst never sees a partial document.
func (p PDF) Write(dir string, r model.Relatorio, o model.Obra) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create pdf dir: %w", err)
	}
	dst := filepath.Join(dir, FileName(r))
	f, err := os.CreateTemp(dir, "."+FileName(r)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create pdf: %w", err)
	}
	defer os.Remove(f.Name())
	if err := p.Render(f, r, o); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return "", fmt.Errorf("chmod pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close pdf: %w", err)
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return "", fmt.Errorf("rename pdf: %w", err)
	}
	return dst, nil
}

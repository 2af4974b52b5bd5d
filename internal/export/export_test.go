package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"obra-rdo/internal/model"
)

func sampleReport() model.Relatorio {
	return model.Relatorio{
		ID:                 "4f1c",
		NumeroRDO:          12,
		Obra:               "Escola São João",
		DataRelatorio:      "2025-04-13",
		DataCriacao:        "2025-04-13 17:30:00",
		NomeUsuarioCriacao: "Ana Paula",
		ClimaManha:         "Ensolarado",
		ClimaTarde:         "Chuvoso",
		Temperatura:        27,
		HorariosChuvaTarde: map[string]bool{"15h-17h": true},
		Equipe:             []string{"Paulo", "Rita"},
		Atividades: []model.Atividade{
			{Descricao: "Concretagem da laje", Status: "Concluída", Anexos: []string{"4f1c/atividade_0_20250413173000_laje.png"}},
		},
		Ocorrencias:             []model.Ocorrencia{{Descricao: "Atraso na entrega", Gravidade: "Média"}},
		NecessidadeMateriaisSim: true,
		MateriaisNecessarios:    "Cimento",
		MateriaisUrgentes:       true,
		Fotos:                   []string{"4f1c/foto_geral_0_20250413173000_notas.txt"},
	}
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRenderPDF(t *testing.T) {
	var buf bytes.Buffer
	err := PDF{}.Render(&buf, sampleReport(), model.Obra{Endereco: "Rua das Flores, 10", PrazoInicio: "2025-01-01", PrazoFim: "2025-12-31"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRenderPDFWithImages(t *testing.T) {
	pngData := tinyPNG(t)
	opened := map[string]int{}
	p := PDF{Open: func(rel string) (io.ReadCloser, error) {
		opened[rel]++
		if strings.HasSuffix(rel, ".png") {
			return io.NopCloser(bytes.NewReader(pngData)), nil
		}
		return nil, errors.New("unexpected open")
	}}

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf, sampleReport(), model.Obra{}))
	assert.Equal(t, map[string]int{"4f1c/atividade_0_20250413173000_laje.png": 1}, opened)

	// a broken image does not fail the document
	p.Open = func(string) (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("not a png")), nil }
	buf.Reset()
	require.NoError(t, p.Render(&buf, sampleReport(), model.Obra{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWritePDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pdfs")
	dst, err := PDF{}.Write(dir, sampleReport(), model.Obra{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "RDO_12_4f1c.pdf"), dst)
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWritePDFConcurrentReadersSeeWholeFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pdfs")
	dst, err := PDF{}.Write(dir, sampleReport(), model.Obra{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := PDF{}.Write(dir, sampleReport(), model.Obra{})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			data, err := os.ReadFile(dst)
			if err == nil && (!bytes.HasPrefix(data, []byte("%PDF-")) || !bytes.HasSuffix(bytes.TrimSpace(data), []byte("%%EOF"))) {
				err = errors.New("partial pdf read")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "RDO_12_4f1c.pdf", entries[0].Name())
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "RDO_12_Escola-Sao-Joao_2025-04-13.pdf", DownloadName(sampleReport()))
	assert.Equal(t, "Acai-Obra-n-3", Slug("  Açaí / Obra nº 3 "))
	assert.Equal(t, "RDO_0.pdf", DownloadName(model.Relatorio{}))
}

func TestRenderXLSX(t *testing.T) {
	older := sampleReport()
	older.NumeroRDO = 11
	older.DataRelatorio = "12/04/2025"
	older.MateriaisUrgentes = false

	var buf bytes.Buffer
	require.NoError(t, RenderXLSX(&buf, []model.Relatorio{sampleReport(), older}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Nº RDO", rows[0][0])
	assert.Equal(t, []string{"12", "13/04/2025", "Escola São João"}, rows[1][:3])
	assert.Equal(t, "Paulo, Rita", rows[1][6])
	assert.Equal(t, "Concretagem da laje (Concluída)", rows[1][7])
	assert.Equal(t, "Sim", rows[1][11])
	assert.Equal(t, "12/04/2025", rows[2][1])
	assert.Equal(t, "Não", rows[2][11])
}

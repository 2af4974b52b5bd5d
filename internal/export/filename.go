package export

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"obra-rdo/internal/model"
)

// Slug folds accents and replaces anything outside [A-Za-z0-9] with a dash,
// for use in download file names.
func Slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// DownloadName is the file name offered to clients, e.g.
// "RDO_12_Escola-Sao-Joao_2025-04-13.pdf".
func DownloadName(r model.Relatorio) string {
	name := fmt.Sprintf("RDO_%d", int(r.NumeroRDO))
	if s := Slug(r.Obra); s != "" {
		name += "_" + s
	}
	if s := Slug(r.DataRelatorio); s != "" {
		name += "_" + s
	}
	return name + ".pdf"
}

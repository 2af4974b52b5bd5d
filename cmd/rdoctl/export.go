package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"obra-rdo/internal/export"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/model"
)

// maintainer sees every report regardless of assignments.
var maintainer = model.Principal{
	Username: "rdoctl",
	Usuario:  model.Usuario{Nivel: model.RoleAdmin, Ativo: true},
}

func exportXLSX(ctx context.Context, e env, args []string) error {
	fs := flag.NewFlagSet("export-xlsx", flag.ExitOnError)
	out := fs.String("out", "relatorios.xlsx", "output file")
	obra := fs.String("obra", "", "only reports of this obra")
	from := fs.String("de", "", "first report date")
	to := fs.String("ate", "", "last report date")
	fs.Parse(args)

	list, err := e.reports.List(ctx, model.ReportFilter{Obra: *obra, From: *from, To: *to}, maintainer)
	if err != nil {
		return err
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := export.RenderXLSX(f, list); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("export-xlsx: written", "file", *out, "reports", len(list))
	return nil
}

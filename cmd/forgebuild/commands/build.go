package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/forgebuild/internal/pipeline"
	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	ID       string `arg:"" help:"Project id"`
	Operator string `help:"Operator recorded on the build record"`
	JSON     bool   `name:"json" help:"Print the build record as JSON"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	a, err := loadApp(root.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	if b.Operator != "" {
		ctx = pipeline.WithOperator(ctx, b.Operator)
	}
	rec, err := a.orchestrator.BuildByID(ctx, b.ID)
	if err != nil {
		return err
	}
	return printRecord(os.Stdout, rec, b.JSON)
}

func printRecord(w io.Writer, rec *project.BuildRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	_, err := fmt.Fprintf(w, "build %s: %s (errorLine %d)\n", rec.ID, rec.Status, rec.ErrorLine)
	return err
}

// RebuildCmd implements the 'rebuild' command.
type RebuildCmd struct{}

func (r *RebuildCmd) Run(_ *Global, root *CLI) error {
	a, err := loadApp(root.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sum, err := a.orchestrator.RebuildAll(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("rebuilt %d projects: %d succeeded, %d failed, %d errors\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.Errors)
	if sum.Errors > 0 {
		return fmt.Errorf("%d of %d builds could not be completed", sum.Errors, sum.Total)
	}
	return nil
}

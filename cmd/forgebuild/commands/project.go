package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/project"
	"git.home.luguber.info/inful/forgebuild/internal/store"
)

// ProjectCmd groups the project management subcommands.
type ProjectCmd struct {
	Add  ProjectAddCmd  `cmd:"" help:"Register a project"`
	List ProjectListCmd `cmd:"" help:"List registered projects, newest first"`
	Show ProjectShowCmd `cmd:"" help:"Show a project and its recent builds"`
}

// ProjectAddCmd implements 'project add'.
type ProjectAddCmd struct {
	Name       string `arg:"" help:"Project name, also the workspace directory name"`
	SourceRepo string `arg:"" name:"source-repo" help:"Git URL of the source repository"`
}

func (c *ProjectAddCmd) Run(_ *Global, root *CLI) error {
	a, err := loadApp(root.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p := &project.Project{Name: c.Name, SourceRepo: c.SourceRepo}
	if err := a.db.Projects().Insert(context.Background(), p); err != nil {
		return err
	}
	fmt.Printf("registered %s as %s\n", p.Name, p.ID)
	return nil
}

// ProjectListCmd implements 'project list'.
type ProjectListCmd struct {
	Name   string `help:"Only list the project with this name"`
	Status string `help:"Only list projects whose last build has this status (pending, success, failed)"`
	JSON   bool   `name:"json" help:"Print JSON"`
}

func (c *ProjectListCmd) Run(_ *Global, root *CLI) error {
	a, err := loadApp(root.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	list, err := a.db.Projects().Find(context.Background(), store.Filter{Name: c.Name})
	if err != nil {
		return err
	}
	if c.Status != "" {
		if list, err = filterByStatus(list, c.Status); err != nil {
			return err
		}
	}
	return printProjects(os.Stdout, list, c.JSON)
}

func filterByStatus(list []project.Project, raw string) ([]project.Project, error) {
	status, err := project.ParseStatus(raw)
	if err != nil {
		return nil, errors.ValidationError("invalid --status").WithCause(err).Build()
	}
	out := make([]project.Project, 0, len(list))
	for _, p := range list {
		if p.BuildStatus == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func printProjects(w io.Writer, list []project.Project, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tBUILDS\tLAST BUILD\tSOURCE")
	for _, p := range list {
		last := "-"
		if p.LastBuildDate != nil {
			last = p.LastBuildDate.Local().Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, p.BuildStatus, p.BuildCount, last, p.SourceRepo)
	}
	return tw.Flush()
}

// ProjectShowCmd implements 'project show'.
type ProjectShowCmd struct {
	ID     string `arg:"" help:"Project id"`
	Builds int    `help:"Number of recent build records to show" default:"5"`
}

func (c *ProjectShowCmd) Run(_ *Global, root *CLI) error {
	a, err := loadApp(root.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	p, err := a.db.Projects().FindByID(ctx, c.ID)
	if err != nil {
		return err
	}
	records, err := a.db.Records().ListByProject(ctx, p.ID, c.Builds)
	if err != nil {
		return err
	}
	return printProjectDetail(os.Stdout, p, records)
}

func printProjectDetail(w io.Writer, p *project.Project, records []project.BuildRecord) error {
	if err := printProjects(w, []project.Project{*p}, false); err != nil {
		return err
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "\nno builds yet")
		return err
	}
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTATUS\tERROR LINE\tOPERATOR\tCREATED")
	for _, r := range records {
		op := r.Operator
		if op == "" {
			op = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Status, r.ErrorLine, op, r.CreateTime.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

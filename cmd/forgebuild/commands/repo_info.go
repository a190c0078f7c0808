package commands

import (
	"context"
	"encoding/json"
	"os"
)

// RepoInfoCmd implements the 'repo-info' command.
type RepoInfoCmd struct {
	ID string `arg:"" help:"Project id"`
}

func (c *RepoInfoCmd) Run(_ *Global, root *CLI) error {
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
	info, err := a.orchestrator.SourceRepoInfo(ctx, p.ID, p.Name, p.SourceRepo)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/loadthegraphics/ltgbot/internal/janitor"
)

type SweepCmd struct {
	Store StoreFlags `embed:""`
}

func (c *SweepCmd) Validate() error {
	if c.Store.StoreType == storeMemory {
		return errors.New("sweep needs a persistent store (--store-type postgres or redis)")
	}
	return nil
}

func (c *SweepCmd) Run(ctx context.Context, globals *Globals) error {
	log := setupLogger(globals)

	sessions, closeStore, err := c.Store.open(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := janitor.New(sessions, janitor.Config{}).SweepOnce(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	log.Info().Int("removed", removed).Msg("Sweep finished")
	return nil
}

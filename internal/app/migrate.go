package app

import (
	"currencyconv/internal/storage"
)

// Migrate applies the embedded schema migrations.
func (a *App) Migrate() error {
	version, err := storage.Migrate(a.Config.Database.DSN)
	if err != nil {
		return err
	}
	a.Logger.Info().Uint("version", version).Msg("database schema up to date")
	return nil
}

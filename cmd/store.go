package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/childcare-cli/internal/store"
)

// initStore opens and migrates the local sqlite store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

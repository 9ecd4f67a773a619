package cli

import (
	"context"

	"github.com/spf13/cobra"

	"resource-backup/src/backend"
	"resource-backup/src/backend/local"
	"resource-backup/src/backend/remote"
	"resource-backup/src/backup/service"
	"resource-backup/src/config"
	"resource-backup/src/errs"
	"resource-backup/src/logging"
	"resource-backup/src/target"
)

// openService loads the config, applies --target and connects the backend
// the config selects. The returned func releases the backend.
func openService(cmd *cobra.Command) (*service.Service, func(), error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if raw, _ := cmd.Root().PersistentFlags().GetString("target"); raw != "" {
		tgt, err := target.Parse(raw)
		if err != nil {
			return nil, nil, errs.Validation("%v", err)
		}
		if cfg, err = cfg.WithTarget(tgt); err != nil {
			return nil, nil, err
		}
	}

	log := logging.New(getLoggingConfig(cmd))
	log.Debug().Str("name", cfg.Name).Str("type", cfg.Type).Str("storage", cfg.StoragePath).Msg("config loaded")

	var be backend.Backend
	if cfg.IsRemote() {
		r, err := remote.Open(commandContext(cmd), cfg, log)
		if err != nil {
			return nil, nil, err
		}
		be = r
	} else {
		be = local.New()
	}
	closeFn := func() {
		if err := be.Close(); err != nil {
			log.Warn().Err(err).Msg("closing storage backend")
		}
	}
	return service.New(cfg, be, log), closeFn, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

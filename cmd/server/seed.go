package main

import (
	"fmt"

	"fiduciaire/internal/router"
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/logger"
)

// seedData bootstrap admin and built-in PV types. Safe to run on every start.
func seedData(cfg *config.Config, svc *router.Services) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	if cfg.Account.BootstrapAdminEmail != "" {
		admin, created, err := svc.Users.EnsureAdmin(cfg.Account.BootstrapAdminEmail, cfg.Account.BootstrapAdminPassword)
		if err != nil {
			return fmt.Errorf("création de l'administrateur: %w", err)
		}
		if created {
			appLogger.Warnf("Administrateur initial créé (%s) : changez son mot de passe", admin.Email)
		}
	}

	n, err := svc.TypesPV.SeedBuiltinTypes()
	if err != nil {
		return fmt.Errorf("types de PV intégrés: %w", err)
	}
	if n > 0 {
		appLogger.Infof("%d type(s) de PV intégré(s) créé(s)", n)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

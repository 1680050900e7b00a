package main

import (
	"net/http"

	"github.com/Bando358/ecmis-sub006/internal/anomaly"
	"github.com/Bando358/ecmis-sub006/internal/api"
	"github.com/Bando358/ecmis-sub006/internal/config"
	"github.com/Bando358/ecmis-sub006/internal/database"
	"github.com/Bando358/ecmis-sub006/internal/directory"
	"github.com/Bando358/ecmis-sub006/internal/migrations"
	"github.com/Bando358/ecmis-sub006/internal/seed"
	"github.com/Bando358/ecmis-sub006/internal/stock"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		logger.WithError(err).Fatal("migrations failed")
	}
	if cfg.ProductCatalogCSV != "" {
		if _, err := seed.LoadProductsFile(db, cfg.ProductCatalogCSV, logger); err != nil {
			config.LogError(logger, "main", "main", "seed product catalog", cfg.ProductCatalogCSV, err)
		}
	}

	dir := directory.New(db)
	svc := stock.New(db, dir, stock.Options{
		Detector: anomaly.Detector{CriticalPercent: cfg.CriticalVariancePercent},
		Logger:   logger,
	})
	handler := api.New(db, svc, dir, cfg, logger)

	logger.WithField("port", cfg.HTTPPort).WithField("driver", db.DriverName()).Info("clinic stock server starting")
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

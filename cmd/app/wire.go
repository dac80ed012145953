//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/mealplanner/internal/bootstrap"
	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	"github.com/yanqian/mealplanner/internal/domain/session"
	"github.com/yanqian/mealplanner/internal/infra/config"
	"github.com/yanqian/mealplanner/internal/infra/images"
	httpiface "github.com/yanqian/mealplanner/internal/interface/http"
	"github.com/yanqian/mealplanner/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideSessionConfig,
		provideMealPlanConfig,
		provideExportConfig,
		provideImageConfig,
		provideCanvasFactory,
		provideGenerator,
		provideObjectStorage,
		provideImageCache,
		provideExportRepository,
		images.NewFetcher,
		export.NewExporter,
		mealplan.NewFactory,
		session.NewManager,
		wire.Bind(new(export.ImageSource), new(*images.Fetcher)),
		wire.Bind(new(session.Renderer), new(*export.Exporter)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}

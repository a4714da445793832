package app

import (
	"go.uber.org/fx"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/cache"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/config"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/database"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/logger"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/messaging"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/observability"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/pricing"
	repositoryhistory "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/history"
	repositoryorder "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/order"
	repositoryquotation "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/quotation"
	httpserver "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/server/http"
	serviceorder "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/service/order"
	transporthttp "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/transport/http"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/worker"
	workerorder "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	pricing.Module,
	repositoryorder.Module,
	repositoryquotation.Module,
	repositoryhistory.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP

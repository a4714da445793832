package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
)

package order

import "go.uber.org/fx"

// Module provides the order lifecycle and query services to Fx.
var Module = fx.Provide(NewService, NewQuery)

package quotation

import "go.uber.org/fx"

// Module provides the quotation repository to Fx.
var Module = fx.Provide(NewRepository)

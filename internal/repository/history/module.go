package history

import "go.uber.org/fx"

// Module provides the history ledger repository to Fx.
var Module = fx.Provide(NewRepository)

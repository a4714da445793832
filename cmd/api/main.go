package main

import (
	"go.uber.org/fx"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}

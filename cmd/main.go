package main

import (
	"go.uber.org/fx"

	"github.com/pi-kari/animal-share-back/internal/app"
)

func main() {
	fx.New(app.Options()).Run()
}

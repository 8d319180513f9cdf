package service

import (
	"go.uber.org/fx"
)

var (
	Module = fx.Provide(
		NewTaxonomy,
		NewZoning,
		NewFeed,
		NewContent,
		NewFavorites,
		NewSessions,
	)
)

package collections

import (
	"github.com/smallbiznis/collections/internal/collections/repository"
	"github.com/smallbiznis/collections/internal/collections/service"
	"go.uber.org/fx"
)

var Module = fx.Module("collections.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideMetrics,
	ProvideEngineOptions,
	ProvideEngine,
	ProvideServer,
	ProvideApp,
)

func InitializeApp(ctx context.Context, path ConfigPath) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}

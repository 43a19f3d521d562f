// Package factory constructs a state store driver from configuration.
// It lives apart from pkg/statestore so the driver interface does not import
// its own implementations.
package factory

import (
	"context"
	"fmt"

	"github.com/mnemohq/mnemo/pkg/statestore"
	"github.com/mnemohq/mnemo/pkg/statestore/inmemory"
	"github.com/mnemohq/mnemo/pkg/statestore/postgres"
	"github.com/mnemohq/mnemo/pkg/statestore/redisstore"
	"github.com/mnemohq/mnemo/pkg/statestore/sqlite"
)

// Provider names accepted in [state] provider.
const (
	ProviderInMemory = "inmemory"
	ProviderRedis    = "redis"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
)

// Open creates the state store driver named by provider.
// target is provider-specific: a redis host:port, a sqlite path, or a
// postgres connection string. The in-memory provider ignores it.
func Open(ctx context.Context, provider, target string) (statestore.Driver, error) {
	switch provider {
	case ProviderInMemory:
		return inmemory.NewDriver(), nil

	case ProviderRedis:
		return redisstore.NewDriver(ctx, redisstore.Config{Addr: target})

	case ProviderSQLite:
		if target == "" {
			return nil, fmt.Errorf("sqlite state store requires a path in [state] target")
		}
		return sqlite.NewDriver(target)

	case ProviderPostgres:
		if target == "" {
			return nil, fmt.Errorf("postgres state store requires a connection string in [state] target")
		}
		return postgres.NewDriver(ctx, target)

	default:
		return nil, fmt.Errorf("unknown state store provider %q", provider)
	}
}

// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Goer17/InnoTree/pkg/vector"
	"github.com/Goer17/InnoTree/pkg/vector/chroma"
	"github.com/Goer17/InnoTree/pkg/vector/qdrant"
	"github.com/Goer17/InnoTree/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "chroma", "qdrant" or "sqlite".
	ProviderType string

	// TargetURL is the Chroma URL, the Qdrant host or the SQLite path.
	TargetURL  string
	Port       int
	APIKey     string
	Collection string
	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:           o.TargetURL,
			Port:           o.Port,
			APIKey:         o.APIKey,
			CollectionName: o.Collection,
			Dimensions:     uint64(o.Dimensions),
		}, o.Logger)
	case "sqlite", "sqlite-vec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

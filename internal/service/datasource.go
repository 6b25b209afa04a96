package service

import (
	"context"
	"sort"

	"github.com/project-kessel/remoteclaim/internal/session"
)

// DataSource is a named supplier of JSON for claim mappers, usually a
// remote claim endpoint.
type DataSource interface {
	// Name is the registry key mappers refer to.
	Name() string

	// Fetch returns the raw payload for input. A nil result with a nil
	// error means nothing to contribute; any error fails the issuance.
	Fetch(ctx context.Context, input *DataSourceInput) (*DataSourceResult, error)
}

// DataSourceContentType is the media type of a fetched payload
type DataSourceContentType string

const ContentTypeJSON DataSourceContentType = "application/json"

// DataSourceResult is a fetched payload. Data may be shared between mappers
// of one pass and must not be modified.
type DataSourceResult struct {
	Data        []byte
	ContentType DataSourceContentType
}

// DataSourceInput is what a data source may use to build its request
type DataSourceInput struct {
	Identity *session.Identity `json:"identity,omitempty"`

	// Attributes is the issuance-scoped store shared by every mapper of the
	// current pass. Nil in the legacy session-only path.
	Attributes session.Attributes `json:"-"`
}

// DataSourceRegistry maps names to data sources
type DataSourceRegistry struct {
	sources map[string]DataSource
}

// NewDataSourceRegistry creates a new data source registry
func NewDataSourceRegistry() *DataSourceRegistry {
	return &DataSourceRegistry{
		sources: make(map[string]DataSource),
	}
}

// Register adds a data source to the registry
func (r *DataSourceRegistry) Register(source DataSource) {
	r.sources[source.Name()] = source
}

// Get retrieves a data source by name
// Returns nil if the data source is not found
func (r *DataSourceRegistry) Get(name string) DataSource {
	if r == nil {
		return nil
	}
	return r.sources[name]
}

// Names returns the names of all registered data sources, sorted
func (r *DataSourceRegistry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

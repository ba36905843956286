package plugin

import "fmt"

// OutputConfig carries what an output needs to open
type OutputConfig struct {
	Path      string // on-disk location, empty for in-memory
	BatchSize int
}

// Outputs is a global map of OutputAdapter plugins.
var Outputs = map[string]func(OutputConfig) (OutputAdapter, error){
	"badger": func(c OutputConfig) (OutputAdapter, error) {
		return NewBadgerOutput(c.Path, c.BatchSize)
	},
	"memory": func(c OutputConfig) (OutputAdapter, error) {
		return NewMemoryOutput(), nil
	},
}

func OutputLookup(name string, c OutputConfig) (OutputAdapter, error) {
	factory, ok := Outputs[name]
	if !ok {
		return nil, fmt.Errorf("unknown output: %s", name)
	}
	return factory(c)
}

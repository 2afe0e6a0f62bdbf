package registry

import "fmt"

// Configuration is an immutable (Method, Operation) pair identifying one
// end-to-end scenario. Identity is the pair of names; the full set of
// configurations is the cartesian product of all methods and operations.
type Configuration struct {
	Method    Method
	Operation Operation
}

// Key is the stable identity string, also used as the probe cache key.
func (c Configuration) Key() string {
	return fmt.Sprintf("%s,%s", c.Method.Name(), c.Operation.Name())
}

func (c Configuration) String() string {
	return c.Key()
}

// Matrix expands methods and operations into the cartesian configuration
// set. Order is fixed: operations cycle fastest, matching the order test
// cases are discovered in.
func Matrix(methods []Method, operations []Operation) []Configuration {
	configs := make([]Configuration, 0, len(methods)*len(operations))
	for _, m := range methods {
		for _, o := range operations {
			configs = append(configs, Configuration{Method: m, Operation: o})
		}
	}
	return configs
}

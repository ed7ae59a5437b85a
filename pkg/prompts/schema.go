// Package prompts builds the provider requests for every advisory capability.
// Builders are pure: they embed caller facts into fixed templates and declare the
// expected output shape, but never call a provider.
package prompts

import (
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	schemaMu    sync.Mutex
	schemaCache = map[reflect.Type]*jsonschema.Schema{}
)

// SchemaFor reflects the JSON schema of T from its json and jsonschema struct tags.
// Schemas are inlined (no $ref) and cached per type. Callers must not mutate the result.
func SchemaFor[T any]() *jsonschema.Schema {
	t := reflect.TypeFor[T]()

	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[t]; ok {
		return s
	}

	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	s := r.ReflectFromType(t)
	s.Version = ""
	s.ID = ""
	schemaCache[t] = s
	return s
}

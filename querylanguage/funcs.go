package querylanguage

import (
	"math/rand/v2"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// FuncDescriptor associates a function signature appearing in query
// expressions with its backend-native invocation. Descriptors are
// resolved once from the model when a compiler is constructed and are
// read-only afterwards.
type FuncDescriptor struct {
	// Name is the function identity as authored in expressions.
	Name string
	// Schema optionally qualifies the backend function.
	Schema string
	// FuncName is the backend-native function name. Defaults to Name.
	FuncName string
	// NArgs is the declared number of arguments. Lambda-typed arguments
	// count as a single argument of their body type.
	NArgs int
	// ReturnsRows reports whether the function returns a queryable
	// sequence rather than a scalar.
	ReturnsRows bool
	// Elem is the element type for row-returning functions, or the
	// scalar return type otherwise.
	Elem reflect.Type
}

// Qualified returns the schema-qualified backend function name.
func (d *FuncDescriptor) Qualified() string {
	name := d.FuncName
	if name == "" {
		name = d.Name
	}
	if d.Schema != "" {
		return d.Schema + "." + name
	}
	return name
}

// Built-in function identities. Calls to these are never evaluated at
// compile time: the clock would bake a stale timestamp into a cached
// plan, and the generators must produce a fresh value per execution.
const (
	FuncNow  = "time.Now"
	FuncUUID = "uuid.New"
	FuncRand = "rand.Int"
)

// Now returns a volatile member access reading the process clock.
func Now() *Member {
	return &Member{
		Name: FuncNow,
		Access: func(any) (any, error) {
			return time.Now(), nil
		},
	}
}

// NewUUID returns a call generating a fresh unique identifier.
func NewUUID() *Call {
	return &Call{
		Fn: FuncUUID,
		Invoke: func(...any) (any, error) {
			return uuid.NewString(), nil
		},
	}
}

// Rand returns a call generating a non-deterministic integer.
func Rand() *Call {
	return &Call{
		Fn: FuncRand,
		Invoke: func(...any) (any, error) {
			return rand.Int64(), nil
		},
	}
}

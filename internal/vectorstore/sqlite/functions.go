package sqlite

import (
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"

	"ragdb/internal/vectorstore"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions makes vector_distance(a, b, metric) available on
// connections opened after the first call.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("vector_distance", 3, vectorDistanceImpl)
	})
	return registerErr
}

func vectorDistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("vector_distance: expected 3 arguments, got %d", len(args))
	}
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	a, err := asVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asVector(args[1])
	if err != nil {
		return nil, err
	}
	var name string
	switch m := args[2].(type) {
	case string:
		name = m
	case []byte:
		name = string(m)
	default:
		return nil, fmt.Errorf("vector_distance: metric must be TEXT, got %T", args[2])
	}
	metric, err := vectorstore.ParseMetric(name)
	if err != nil {
		return nil, err
	}
	return metric.Distance(a, b)
}

func asVector(arg driver.Value) ([]float64, error) {
	b, ok := arg.([]byte)
	if !ok {
		return nil, fmt.Errorf("vector_distance: unsupported argument type %T; want BLOB", arg)
	}
	return DecodeVector(b)
}

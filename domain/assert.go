package domain

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Asserter logs failed checks and reports them as booleans. A failed check never panics;
// callers that depend on the outcome test the returned value.
type Asserter struct {
	logger *zap.Logger
}

// NewAsserter returns an Asserter writing diagnostics to logger.
func NewAsserter(logger *zap.Logger) *Asserter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Asserter{logger: logger}
}

// Logger exposes the diagnostic channel.
func (a *Asserter) Logger() *zap.Logger {
	if a == nil || a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

// NotNil fails for nil and for typed nils (nil pointers, maps, slices, funcs).
func (a *Asserter) NotNil(name string, v any) bool {
	if isNil(v) {
		a.fail("not_nil", name, v, "value is nil")
		return false
	}
	return true
}

// String fails unless v is a string.
func (a *Asserter) String(name string, v any) bool {
	if _, ok := v.(string); !ok {
		a.fail("string", name, v, "not a string")
		return false
	}
	return true
}

// Number fails unless v is a numeric value.
func (a *Asserter) Number(name string, v any) bool {
	if _, ok := toFloat(v); !ok {
		a.fail("number", name, v, "not a number")
		return false
	}
	return true
}

// Boolean fails unless v is a bool.
func (a *Asserter) Boolean(name string, v any) bool {
	if _, ok := v.(bool); !ok {
		a.fail("boolean", name, v, "not a boolean")
		return false
	}
	return true
}

// Type fails unless v is a wrapper or record carrying typeTag.
func (a *Asserter) Type(name string, v any, typeTag string) bool {
	rec := Unwrap(v)
	if rec == nil || rec.TypeTag() != typeTag {
		a.fail("type", name, v, fmt.Sprintf("expected type tag %q", typeTag))
		return false
	}
	return true
}

// Check logs msg when cond is false and returns cond.
func (a *Asserter) Check(cond bool, msg string) bool {
	if !cond {
		a.fail("check", "", nil, msg)
	}
	return cond
}

// AssertInstanceOf fails unless v has dynamic type T.
func AssertInstanceOf[T any](a *Asserter, name string, v any) (T, bool) {
	t, ok := v.(T)
	if !ok {
		a.fail("instance_of", name, v, fmt.Sprintf("expected %T", t))
	}
	return t, ok
}

func (a *Asserter) fail(check, name string, v any, msg string) {
	a.Logger().Warn("assertion failed",
		zap.String("check", check),
		zap.String("name", name),
		zap.String("got", fmt.Sprintf("%T", v)),
		zap.String("reason", msg),
		zap.Stack("stack"),
	)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

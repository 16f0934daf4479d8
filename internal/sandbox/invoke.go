package sandbox

import (
	"github.com/dop251/goja"
)

// entryPoints are the conventional strategy entry-point names, in priority
// order. The first one defined as a function wins.
var entryPoints = [...]string{"tradingStrategy", "evaluate", "strategy"}

// newRuntime builds a fresh, empty JavaScript runtime for one invocation.
// Nothing from the host is injected: the script sees goja's default globals
// (Math, Date, JSON, ...) but no module graph, no I/O and no host closures.
func newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return vm
}

// run executes the normalized program in vm and dispatches to the first
// recognized entry point, passing ec as the sole argument. The returned value
// is untrusted and must go through validation.
func run(vm *goja.Runtime, executable string, ec Context) (any, error) {
	if _, err := vm.RunString(executable); err != nil {
		return nil, scriptError(err)
	}

	for _, name := range entryPoints {
		fn, ok := goja.AssertFunction(vm.Get(name))
		if !ok {
			continue
		}
		v, err := fn(goja.Undefined(), vm.ToValue(ec))
		if err != nil {
			return nil, scriptError(err)
		}
		return v.Export(), nil
	}
	return nil, ErrNoEntryPoint
}

// scriptError converts a goja failure into the engine's error taxonomy,
// unwrapping thrown Error objects down to their message.
func scriptError(err error) error {
	switch e := err.(type) {
	case *goja.InterruptedError:
		return ErrTimeout
	case *goja.Exception:
		return &RuntimeError{Message: exceptionMessage(e)}
	default:
		return &RuntimeError{Message: err.Error()}
	}
}

func exceptionMessage(e *goja.Exception) string {
	if obj, ok := e.Value().(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	if v := e.Value(); v != nil {
		return v.String()
	}
	return e.Error()
}

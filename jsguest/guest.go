// Package jsguest is a zero-browser JavaScript guest harness for exercising
// the operation bus end to end without a real V8/Deno runtime.
//
// Many real guests are a JS engine embedded in a host process that calls
// back into the host through a small set of synchronous/asynchronous op
// primitives. This package plays that role with the otto pure-Go JavaScript
// interpreter: it seeds the VM with a single __opbus_call binding that takes
// an op name and a JSON argument string, invokes the dispatcher directly,
// and hands the JSON reply envelope back to JS.
//
// This is deliberately not a browser environment — it is the guest side of
// the bus, not a DOM. Scripts call opbus.call(name, args), which returns the
// parsed reply; see bootstrap for the exact surface installed.
package jsguest

import (
	"fmt"
	"sync"

	"github.com/robertkrimen/otto"

	"github.com/arfaz/opbus/bus/dispatch"
)

// Guest wraps an otto VM bound to a Dispatcher. It is safe for concurrent
// use: a mutex serializes access to the shared VM, matching how a single
// JS isolate is not itself thread-safe even though the host-side
// dispatcher is.
type Guest struct {
	vm   *otto.Otto
	d    *dispatch.Dispatcher
	mu   sync.Mutex
	next int32
}

// New creates a Guest bound to d with the opbus JS bindings installed.
func New(d *dispatch.Dispatcher) (*Guest, error) {
	g := &Guest{vm: otto.New(), d: d, next: 1}
	if err := g.bootstrap(); err != nil {
		return nil, err
	}
	return g, nil
}

// bootstrap installs the opbus global object: opbus.call(name, argsJSON) for
// ops that complete synchronously from script's point of view. Async ops
// are resolved eagerly (the demo harness has no JS event loop), which is a
// deliberate simplification documented in the module's design notes.
func (g *Guest) bootstrap() error {
	callOp := func(call otto.FunctionCall) otto.Value {
		name, _ := call.Argument(0).ToString()
		argsJSON, _ := call.Argument(1).ToString()

		out, err := g.callOp(name, []byte(argsJSON))
		if err != nil {
			v, _ := g.vm.ToValue(fmt.Sprintf(`{"err":{"kind":"io","message":%q}}`, err.Error()))
			return v
		}
		v, verr := g.vm.ToValue(string(out))
		if verr != nil {
			panic(g.vm.MakeCustomError("OpBusError", verr.Error()))
		}
		return v
	}

	if err := g.vm.Set("__opbus_call", callOp); err != nil {
		return fmt.Errorf("jsguest: install __opbus_call: %w", err)
	}

	bootstrapJS := `
var opbus = {
  call: function(name, args) {
    var raw = __opbus_call(name, JSON.stringify(args || {}));
    return JSON.parse(raw);
  }
};
`
	if _, err := g.vm.Run(bootstrapJS); err != nil {
		return fmt.Errorf("jsguest: bootstrap opbus global: %w", err)
	}
	return nil
}

// callOp looks up opName's numeric id, dispatches a request built from
// argsJSON, and — for an async result — blocks until it resolves, since
// this harness runs scripts to completion rather than pumping an event
// loop between dispatch and reply.
func (g *Guest) callOp(opName string, argsJSON []byte) ([]byte, error) {
	opID, ok := g.d.OpID(opName)
	if !ok {
		return nil, fmt.Errorf("unknown op %q", opName)
	}

	// callOp only runs from inside Eval's vm.Run, which already holds g.mu.
	promiseID := g.next
	g.next++

	result, berr := g.d.Dispatch(opID, dispatch.Request{PromiseID: promiseID, Payload: argsJSON})
	if berr != nil {
		return dispatch.TrimPadding(dispatch.EncodeJsonErr(berr)), nil
	}
	if !result.IsAsync() {
		return dispatch.TrimPadding(result.Sync), nil
	}
	reply := <-result.Async
	if reply.Err != nil {
		return dispatch.TrimPadding(dispatch.EncodeJsonErr(reply.Err)), nil
	}
	return dispatch.TrimPadding(reply.Reply), nil
}

// Eval runs script in the guest VM and returns the string representation of
// its final expression value.
func (g *Guest) Eval(script string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	val, err := g.vm.Run(script)
	if err != nil {
		return "", fmt.Errorf("jsguest: eval: %w", err)
	}
	result, err := val.ToString()
	if err != nil {
		return "", fmt.Errorf("jsguest: convert result to string: %w", err)
	}
	return result, nil
}

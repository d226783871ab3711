// Package eval executes script syntax trees.
//
// Scripts are a Python subset. Values use native Go types for scalars
// (nil, bool, int64, float64, string) and the types in this package for
// containers, callables, datetimes and modules.
//
// # Execution model
//
// A Context is one independent execution: a module's first run, a trigger
// firing, a service call or a guard evaluation. Contexts created for the same
// module share one global SymTable, so functions defined at module level are
// visible to every trigger in that module. Each function call pushes a fresh
// local table; free names then resolve through the enclosing call frames,
// the context's side table, the globals, the builtins and finally the Host.
//
// Failures never panic out of Eval or Invoke. They are logged through the
// context's Logger, recorded on Err, and the call yields nil. Cancelling the
// Go context stops execution at the next statement or loop iteration and is
// not treated as a failure.
//
// # Host integration
//
// The Host interface supplies names the script cannot resolve itself: host
// functions such as task.sleep, and entity state addressed by dotted names
// such as binary_sensor.door. Assigning to a dotted name writes state
// through Host.StateSet.
package eval

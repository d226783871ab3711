package eval

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

// Host supplies the names a script cannot resolve from its own scopes:
// host functions such as log.info or task.sleep, and entity state.
type Host interface {
	// Lookup returns a host function or service by dotted name.
	Lookup(name string) (Value, bool)
	// StateGet returns the state value or attribute for a dotted name.
	StateGet(name string) (Value, bool)
	// StateSet writes a state value; attrs may be nil.
	StateSet(name string, value Value, attrs *Dict) error
}

// Logger is the logging interface used by the interpreter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type nopHost struct{}

func (nopHost) Lookup(string) (Value, bool)   { return nil, false }
func (nopHost) StateGet(string) (Value, bool) { return nil, false }
func (nopHost) StateSet(name string, _ Value, _ *Dict) error {
	return errorf(NameError, "cannot set '%s': no state store", name)
}

// Context is one independent execution of script code: a module's initial
// run, a trigger firing, a service call or a guard evaluation. Each context
// owns its call-frame stack; several contexts may share one global table.
//
// A Context must only be used from one goroutine at a time.
type Context struct {
	// Name identifies the context in logs; for function invocations it is
	// the function name.
	Name string
	// Filename is reported in error positions.
	Filename string

	ctx     context.Context
	globals *SymTable
	locals  *SymTable
	sym     *SymTable
	frames  []*SymTable
	fn      *Function
	host    Host
	logger  Logger
	err     *Error
}

// NewContext creates an execution context over globals. host may be nil.
func NewContext(ctx context.Context, name string, globals *SymTable, host Host) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if globals == nil {
		globals = NewSymTable()
	}
	if host == nil {
		host = nopHost{}
	}
	return &Context{
		Name:    name,
		ctx:     ctx,
		globals: globals,
		locals:  NewSymTable(),
		sym:     globals,
		host:    host,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger used for error reports and print().
func (c *Context) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	c.logger = l
}

// Logger returns the context's logger.
func (c *Context) Logger() Logger { return c.logger }

// Context returns the Go context governing cancellation of this execution.
func (c *Context) Context() context.Context { return c.ctx }

// Globals returns the module global table.
func (c *Context) Globals() *SymTable { return c.globals }

// Locals returns the side table consulted after the normal scope chain.
func (c *Context) Locals() *SymTable { return c.locals }

// Host returns the host the context resolves external names against.
func (c *Context) Host() Host { return c.host }

// CurrentFunc returns the function whose body is executing, or nil at
// module level.
func (c *Context) CurrentFunc() *Function { return c.fn }

// Err returns the error recorded by the most recent Eval or Invoke.
func (c *Context) Err() *Error { return c.err }

// Eval executes node after merging extra into the side table. It returns
// the value of the last expression statement, or nil when execution ended
// in a control-flow statement or failed. Failures are logged and recorded
// on the context; cancellation is neither.
func (c *Context) Eval(node ast.Node, extra map[string]Value) Value {
	c.err = nil
	if len(extra) > 0 {
		c.locals.Update(extra)
	}
	return c.capture(func() (Value, error) {
		r, err := c.exec(node)
		if err != nil || r.Kind != Normal {
			return nil, err
		}
		return r.Value, nil
	})
}

// Invoke calls fn with the same error handling as Eval.
func (c *Context) Invoke(fn Value, args []Value, kwargs *Dict) Value {
	c.err = nil
	return c.capture(func() (Value, error) {
		return c.Call(fn, args, kwargs)
	})
}

func (c *Context) capture(run func() (Value, error)) Value {
	v, err := run()
	if err == nil {
		return v
	}
	if IsCancel(err) {
		return nil
	}
	c.err = asScriptError(err)
	c.logger.Error(c.err.Error(), "context", c.Name)
	return nil
}

// handler executes one node kind.
type handler func(c *Context, n ast.Node) (Result, error)

var dispatch [ast.NumKinds]handler

func init() {
	dispatch = [ast.NumKinds]handler{
		ast.KindModule:      execModule,
		ast.KindExprStmt:    execExprStmt,
		ast.KindAssign:      execAssign,
		ast.KindAugAssign:   execAugAssign,
		ast.KindDelete:      execDelete,
		ast.KindIf:          execIf,
		ast.KindWhile:       execWhile,
		ast.KindFor:         execFor,
		ast.KindBreak:       execBreak,
		ast.KindContinue:    execContinue,
		ast.KindPass:        execPass,
		ast.KindReturn:      execReturn,
		ast.KindGlobal:      execPass,
		ast.KindNonlocal:    execPass,
		ast.KindFunctionDef: execFunctionDef,
		ast.KindImport:      execImport,
		ast.KindImportFrom:  execImportFrom,

		ast.KindName:           evalName,
		ast.KindAttribute:      evalAttribute,
		ast.KindConstant:       evalConstant,
		ast.KindBinOp:          evalBinOp,
		ast.KindUnaryOp:        evalUnaryOp,
		ast.KindBoolOp:         evalBoolOp,
		ast.KindCompare:        evalCompare,
		ast.KindCall:           evalCall,
		ast.KindStarred:        evalStarred,
		ast.KindSubscript:      evalSubscript,
		ast.KindSlice:          evalSlice,
		ast.KindList:           evalList,
		ast.KindTuple:          evalTuple,
		ast.KindDict:           evalDict,
		ast.KindSet:            evalSet,
		ast.KindIfExp:          evalIfExp,
		ast.KindJoinedStr:      evalJoinedStr,
		ast.KindFormattedValue: evalFormattedValue,
		ast.KindUnsupported:    execUnsupported,
	}
}

// exec runs one node through the dispatch table. Statements first check
// for cancellation, so a cancelled task stops at the next statement.
func (c *Context) exec(n ast.Node) (Result, error) {
	if _, ok := n.(ast.Stmt); ok {
		if err := c.ctx.Err(); err != nil {
			return Result{}, err
		}
	}
	var h handler
	if k := n.Kind(); int(k) < len(dispatch) {
		h = dispatch[k]
	}
	if h == nil {
		return Result{}, c.locate(errorf(NotImplementedError, "not implemented ast %s", n.Kind()), n)
	}
	r, err := h(c, n)
	if err != nil {
		return Result{}, c.locate(err, n)
	}
	return r, nil
}

// locate stamps the position of n on err unless an inner node already did.
func (c *Context) locate(err error, n ast.Node) error {
	if IsCancel(err) {
		return err
	}
	var se *Error
	if !errors.As(err, &se) {
		se = &Error{Kind: RuntimeError, Msg: err.Error()}
	}
	if se.located {
		return se
	}
	pos := n.Position()
	se.Line, se.Col, se.File, se.located = pos.Line, pos.Col, c.Filename, true
	if c.fn != nil {
		se.Func = c.fn.Name
	}
	return se
}

// expr evaluates an expression, rejecting unresolved names.
func (c *Context) expr(e ast.Expr) (Value, error) {
	v, err := c.exprRaw(e)
	if err != nil {
		return nil, err
	}
	if n, ok := v.(*Name); ok {
		return nil, c.locate(c.nameError(n.ID), e)
	}
	return v, nil
}

// exprRaw evaluates an expression, letting unresolved names through.
func (c *Context) exprRaw(e ast.Expr) (Value, error) {
	r, err := c.exec(e)
	return r.Value, err
}

// Call invokes a script or host callable.
func (c *Context) Call(fn Value, args []Value, kwargs *Dict) (Value, error) {
	switch f := fn.(type) {
	case *Function:
		return f.call(c, args, kwargs)
	case *Builtin:
		if f.Fn == nil {
			return nil, errorf(TypeError, "cannot create '%s' instances", f.Name)
		}
		return f.Fn(c, args, kwargs)
	}
	return nil, errorf(TypeError, "'%s' object is not callable", TypeName(fn))
}

// Package v8 the V8 interpreter backend, each interpreter owns one isolate
// and one context.
package v8

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
	"github.com/yaoapp/node/runtime"
	"rogchap.com/v8go"
)

// Name the backend name
const Name = "v8"

// Factory the v8 interpreter factory
type Factory struct{}

// Interpreter the v8 interpreter
type Interpreter struct {
	root    string
	iso     *v8go.Isolate
	ctx     *v8go.Context
	natives *v8go.Object
	files   map[string]string
	cache   *Cache
	timers  *runtime.Timers
	started bool
}

var setupOnce sync.Once

func init() {
	runtime.Register(Name, Factory{})
}

// Setup check the working directory and warm up the v8 platform
func (Factory) Setup(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("the working directory %s is not available: %s", root, err.Error())
	}

	if !info.IsDir() {
		return fmt.Errorf("the working directory %s is not a directory", root)
	}

	setupOnce.Do(func() {
		log.Trace("[V8] version %s", v8go.Version())
	})
	return nil
}

// New create a new v8 interpreter
func (Factory) New(option runtime.Option) (runtime.Interpreter, error) {
	return New(option)
}

// New create a new v8 interpreter
func New(option runtime.Option) (*Interpreter, error) {
	root := option.Root
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	iso := v8go.NewIsolate()
	ctx := v8go.NewContext(iso)
	_, err := ctx.RunScript(fmt.Sprintf(`globalThis.process = { natives: {}, platform: "v8", cwd: function () { return %q; } };`, root), "node:process")
	if err != nil {
		ctx.Close()
		iso.Dispose()
		return nil, exception.Wrap(exception.EngineInternal, err)
	}

	process, err := object(ctx.Global(), "process")
	if err != nil {
		ctx.Close()
		iso.Dispose()
		return nil, exception.Wrap(exception.EngineInternal, err)
	}

	natives, err := object(process, "natives")
	if err != nil {
		ctx.Close()
		iso.Dispose()
		return nil, exception.Wrap(exception.EngineInternal, err)
	}

	cache, err := shared(option.CacheSize)
	if err != nil {
		ctx.Close()
		iso.Dispose()
		return nil, exception.Wrap(exception.EngineInternal, err)
	}

	interp := &Interpreter{
		root:    root,
		iso:     iso,
		ctx:     ctx,
		natives: natives,
		files:   map[string]string{},
		cache:   cache,
	}

	if option.Scheduler != nil {
		interp.timers = runtime.NewTimers(option.Scheduler)
		if err := interp.bindTimers(); err != nil {
			interp.Stop()
			return nil, exception.Wrap(exception.EngineInternal, err)
		}
	}
	return interp, nil
}

// DefineFile define a named script file
func (interp *Interpreter) DefineFile(name string, source string) error {
	interp.files[normalize(name)] = source
	return nil
}

// DefineMainFile define the main entry script
func (interp *Interpreter) DefineMainFile(source string) error {
	interp.files[runtime.MainFile] = source
	return nil
}

// SetNative register a native function as process.natives[name]
func (interp *Interpreter) SetNative(name string, fn runtime.NativeFunc) error {
	if interp.ctx == nil {
		return exception.New(exception.InvalidState, "the v8 runtime is stopped")
	}

	tmpl := v8go.NewFunctionTemplate(interp.iso, func(info *v8go.FunctionCallbackInfo) *v8go.Value {
		fn(arguments(info.Args())...)
		return v8go.Undefined(interp.iso)
	})
	return interp.natives.Set(name, tmpl.GetFunction(interp.ctx))
}

// Start install require, then run the main file as a module
func (interp *Interpreter) Start() error {
	if interp.ctx == nil {
		return exception.New(exception.InvalidState, "the v8 runtime is stopped")
	}

	if interp.started {
		return exception.New(exception.InvalidState, "the v8 runtime is already started")
	}

	if err := interp.bindRequire(); err != nil {
		return err
	}

	if _, has := interp.files[runtime.MainFile]; has {
		if _, err := interp.ctx.RunScript(fmt.Sprintf("require(%q);", "./"+runtime.MainFile), "node:start"); err != nil {
			return evaluationError(err)
		}
		interp.ctx.PerformMicrotaskCheckpoint()
	}

	interp.started = true
	log.Trace("[V8] runtime started. root: %s, files: %d", interp.root, len(interp.files))
	return nil
}

// Evaluate run the source code
func (interp *Interpreter) Evaluate(source string, origin string) error {
	_, err := interp.run(source, origin)
	return err
}

// EvaluateFunction run the source code, the completion value must be a function
func (interp *Interpreter) EvaluateFunction(source string, origin string) (runtime.Function, error) {
	value, err := interp.run(source, origin)
	if err != nil {
		return nil, err
	}

	if !value.IsFunction() {
		return nil, exception.New(exception.EngineEvaluation, "%s is not a function", origin)
	}

	fn, err := value.AsFunction()
	if err != nil {
		return nil, exception.Wrap(exception.EngineEvaluation, err)
	}
	return &function{interp: interp, fn: fn}, nil
}

// Loop run the pending promise jobs
func (interp *Interpreter) Loop() error {
	if interp.ctx == nil {
		return exception.New(exception.InvalidState, "the v8 runtime is stopped")
	}
	interp.ctx.PerformMicrotaskCheckpoint()
	return nil
}

// Stop cancel the timers, close the context and dispose the isolate
func (interp *Interpreter) Stop() error {
	if interp.ctx == nil {
		return nil
	}

	if interp.timers != nil {
		interp.timers.Clear()
	}

	interp.ctx.Close()
	interp.iso.Dispose()
	interp.ctx = nil
	interp.iso = nil
	interp.natives = nil
	interp.started = false
	log.Trace("[V8] runtime stopped. root: %s", interp.root)
	return nil
}

func (interp *Interpreter) run(source string, origin string) (*v8go.Value, error) {
	if interp.ctx == nil {
		return nil, exception.New(exception.InvalidState, "the v8 runtime is stopped")
	}

	script, err := interp.cache.Compile(interp.iso, origin, source)
	if err != nil {
		return nil, evaluationError(err)
	}

	value, err := script.Run(interp.ctx)
	if err != nil {
		return nil, evaluationError(err)
	}
	return value, nil
}

// function a v8 function handle, it is valid until the context is closed
type function struct {
	interp *Interpreter
	fn     *v8go.Function
}

// Call call the function with string arguments
func (f *function) Call(args ...string) error {
	if f.fn == nil || f.interp.ctx == nil {
		return exception.New(exception.InvalidState, "the function is released")
	}

	values := make([]v8go.Valuer, 0, len(args))
	for _, arg := range args {
		value, err := v8go.NewValue(f.interp.iso, arg)
		if err != nil {
			return exception.Wrap(exception.EngineInternal, err)
		}
		values = append(values, value)
	}

	_, err := f.fn.Call(v8go.Undefined(f.interp.iso), values...)
	if err != nil {
		return evaluationError(err)
	}
	return nil
}

// Release drop the function reference
func (f *function) Release() {
	f.fn = nil
}

func object(parent *v8go.Object, name string) (*v8go.Object, error) {
	value, err := parent.Get(name)
	if err != nil {
		return nil, err
	}
	return value.AsObject()
}

func evaluationError(err error) error {
	if e, ok := err.(*v8go.JSError); ok {
		log.Trace("[V8] %s", e.StackTrace)
		return exception.New(exception.EngineEvaluation, "%s", e.Message)
	}
	return exception.Wrap(exception.EngineEvaluation, err)
}

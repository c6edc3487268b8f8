package node

import (
	"strings"

	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/bridge"
	"github.com/yaoapp/node/dispatcher"
	"github.com/yaoapp/node/exception"
	"github.com/yaoapp/node/runtime"
	"github.com/yaoapp/node/runtime/transform"
)

// New create a new engine and start its worker goroutine
func New(option Option) (*Engine, error) {
	option.Validate()
	option.applyLogLevel()

	factory, err := runtime.Select(option.Runtime)
	if err != nil {
		return nil, exception.Wrap(exception.InvalidArgument, err)
	}

	id := uuid.NewString()
	engine := &Engine{
		ID:         id,
		option:     option,
		factory:    factory,
		dispatcher: dispatcher.New(id),
		registry:   bridge.NewRegistry(),
		files:      []pendingFile{},
		calls:      []pendingCall{},
		listeners:  newListeners(),
	}

	engine.natives = bridge.NewNatives(engine.registry, "")
	if option.TypeScript && option.Mode == ModeDevelopment {
		engine.natives.WithStackMapper(transform.MapStack)
	}

	if err := engine.dispatcher.Initialize(); err != nil {
		return nil, exception.Wrap(exception.EngineInternal, err)
	}

	log.With(engine.fields()).Trace("[node] engine created. runtime: %s", option.Runtime)
	return engine, nil
}

// Option the validated option of the engine
func (engine *Engine) Option() Option {
	return engine.option
}

// Started check if the engine is started
func (engine *Engine) Started() bool {
	return engine.started.Load()
}

// Pending the number of operations waiting for the engine thread
func (engine *Engine) Pending() int {
	return engine.dispatcher.Pending()
}

// GetMainScriptFileName the name of the main entry script
func (engine *Engine) GetMainScriptFileName() string {
	return MainScriptFileName
}

// DefineScriptFile define a script file that can be loaded with require.
// The files defined before Start are kept in order and defined on Start.
func (engine *Engine) DefineScriptFile(name string, code string) error {
	log.With(engine.fields()).Trace("[node] DefineScriptFile(%q, ...)", name)

	name = strings.TrimSpace(name)
	if name == "" {
		return exception.New(exception.InvalidArgument, "A script file name is required.")
	}

	if name == MainScriptFileName {
		if engine.option.ReservedName == ReservedStrict {
			return exception.New(exception.InvalidArgument, "Invalid script file name: '%s' is a reserved name.", MainScriptFileName)
		}
		log.With(engine.fields()).Warn("[node] Invalid script file name: '%s' is a reserved name. ignored", MainScriptFileName)
		return nil
	}

	if engine.option.TypeScript && transform.IsTypeScript(name) {
		result, err := transform.TypeScript(code, name)
		if err != nil {
			return exception.New(exception.EngineEvaluation, "%s", err.Error())
		}
		code = string(result.Code)
	} else if transform.IsJavaScript(name) {
		if err := transform.JavaScript(code, name); err != nil {
			return exception.New(exception.EngineEvaluation, "%s", err.Error())
		}
	}

	ok := engine.dispatcher.Dispatch(func() {
		if !engine.started.Load() {
			engine.files = appendFile(engine.files, name, code)
			return
		}

		if err := engine.interpreter.DefineFile(name, code); err != nil {
			log.With(engine.fields()).Error("[node] Failed to define %s: %s", name, err.Error())
		}
	})

	if !ok {
		return exception.New(exception.InvalidState, "Node engine is closed.")
	}
	return nil
}

// Start start the engine. The working directory is required and must be the
// same for every engine of the process.
func (engine *Engine) Start(dir string, callback DoneCallback) {
	log.With(engine.fields()).Trace("[node] Start(%q)", dir)
	callback = done(callback)

	if strings.TrimSpace(dir) == "" {
		callback(exception.New(exception.InvalidArgument, "A working directory is required."))
		return
	}

	if err := initialize(engine.option.Runtime, engine.factory, dir); err != nil {
		callback(err)
		return
	}

	ok := engine.dispatcher.Dispatch(func() {
		if engine.started.Load() {
			log.With(engine.fields()).Error("[node] Node engine is already started.")
			callback(exception.New(exception.InvalidState, "Node engine is already started."))
			return
		}

		if err := engine.start(WorkingDirectory()); err != nil {
			log.With(engine.fields()).Error("[node] Failed to start Node engine. %s", err.Error())
			engine.teardown()
			callback(err)
			return
		}

		log.With(engine.fields()).Debug("[node] Started Node engine.")
		callback(nil)
	})

	if !ok {
		callback(exception.New(exception.InvalidState, "Node engine is closed."))
	}
}

// Stop stop the engine, the pending CallScript callbacks are completed
// with an InvalidState error
func (engine *Engine) Stop(callback DoneCallback) {
	log.With(engine.fields()).Trace("[node] Stop()")
	callback = done(callback)

	ok := engine.dispatcher.Dispatch(func() {
		if !engine.started.Load() {
			log.With(engine.fields()).Error("[node] Node engine is not started.")
			callback(exception.New(exception.InvalidState, "Node engine is not started."))
			return
		}

		if err := engine.teardown(); err != nil {
			log.With(engine.fields()).Error("[node] Failed to stop Node engine. %s", err.Error())
			callback(err)
			return
		}

		log.With(engine.fields()).Debug("[node] Stopped Node engine.")
		callback(nil)
	})

	if !ok {
		callback(exception.New(exception.InvalidState, "Node engine is closed."))
	}
}

// CallScript evaluate the script code in the global scope. The callback
// receives the JSON of the result, or the script error. The result JSON is
// empty when the result is undefined, promises are reported once settled.
//
// The call is ordered after the operations issued before it, a CallScript
// right after Start runs once the engine is started. It fails with
// InvalidState when the engine is not started at that point.
func (engine *Engine) CallScript(code string, callback ResultCallback) {
	log.With(engine.fields()).Trace("[node] CallScript(%q)", code)
	if callback == nil {
		callback = func(string, error) {}
	}

	ok := engine.dispatcher.Dispatch(func() { engine.callScript(code, callback) })
	if !ok {
		callback("", exception.New(exception.InvalidState, "Node engine is closed."))
	}
}

// RegisterCallFromScript declare a global script function that forwards its
// arguments, as a JSON array, to the callback. A nil callback raises call
// events to the call listeners instead.
func (engine *Engine) RegisterCallFromScript(name string, callback CallCallback) error {
	log.With(engine.fields()).Trace("[node] RegisterCallFromScript(%q)", name)

	if !bridge.ValidFunctionName(name) {
		return exception.New(exception.InvalidArgument, "Invalid script function name: %q", name)
	}

	if callback == nil {
		callback = func(argsJSON string) {
			engine.listeners.emit(CallEvent{Name: name, ArgsJSON: argsJSON})
		}
	}

	ok := engine.dispatcher.Dispatch(func() {
		if !engine.started.Load() {
			engine.calls = appendCall(engine.calls, name, callback)
			return
		}

		if err := engine.register(name, callback); err != nil {
			log.With(engine.fields()).Error("[node] Failed to register %s: %s", name, err.Error())
		}
	})

	if !ok {
		return exception.New(exception.InvalidState, "Node engine is closed.")
	}
	return nil
}

// Close stop the engine if it is started, then shut the worker down. The
// engine can not be used after.
func (engine *Engine) Close() {
	if engine.closed.Swap(true) {
		return
	}

	engine.dispatcher.Dispatch(func() {
		if engine.started.Load() {
			if err := engine.teardown(); err != nil {
				log.With(engine.fields()).Error("[node] Failed to stop Node engine. %s", err.Error())
			}
		}
	})
	engine.dispatcher.Shutdown()
	log.With(engine.fields()).Trace("[node] engine closed")
}

// start run on the worker
func (engine *Engine) start(dir string) error {
	interpreter, err := engine.factory.New(runtime.Option{
		Root:      dir,
		Scheduler: engine.dispatcher,
		CacheSize: engine.option.CacheSize,
	})
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}
	engine.interpreter = interpreter

	if err := interpreter.DefineMainFile(bridge.Bootstrap); err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	if err := engine.natives.Bind(interpreter); err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	for _, file := range engine.files {
		if err := interpreter.DefineFile(file.name, file.code); err != nil {
			return exception.Wrap(exception.EngineInternal, err)
		}
	}

	if err := interpreter.Start(); err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	for _, call := range engine.calls {
		if err := engine.register(call.name, call.callback); err != nil {
			return err
		}
	}

	helper, err := interpreter.EvaluateFunction(bridge.EvaluateHelper, helperOrigin)
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}
	engine.helper = helper

	engine.files = []pendingFile{}
	engine.calls = []pendingCall{}
	engine.started.Store(true)
	return nil
}

// teardown run on the worker, release the helper, stop the interpreter and
// clear the registry
func (engine *Engine) teardown() error {
	engine.started.Store(false)

	if engine.helper != nil {
		engine.helper.Release()
		engine.helper = nil
	}

	var err error
	if engine.interpreter != nil {
		err = engine.interpreter.Stop()
		engine.interpreter = nil
	}

	engine.registry.Clear()
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}
	return nil
}

// callScript run on the worker
func (engine *Engine) callScript(code string, callback ResultCallback) {
	if !engine.started.Load() {
		callback("", exception.New(exception.InvalidState, "Node engine is not started."))
		return
	}

	token := engine.registry.AddOneShot(callback)
	if err := engine.helper.Call(token.String(), code); err != nil {
		log.With(engine.fields()).Error("[node] Failed to evaluate script code. %s", err.Error())
		if !engine.registry.Reject(token, err) {
			log.With(engine.fields()).Warn("[node] the callback %s was already completed", token.String())
		}
		return
	}

	log.With(engine.fields()).Trace("[node] Successfully evaluated script code.")
	if err := engine.interpreter.Loop(); err != nil {
		log.With(engine.fields()).Error("[node] Failed to run the event loop. %s", err.Error())
	}
}

// register run on the worker
func (engine *Engine) register(name string, callback CallCallback) error {
	token := engine.registry.AddPersistent(name, callback)
	if err := engine.interpreter.Evaluate(bridge.CallFromScript(name, token), "node:"+name); err != nil {
		engine.registry.Release(token)
		return err
	}
	return nil
}

func (engine *Engine) fields() log.F {
	return log.F{"engine": engine.ID}
}

func done(callback DoneCallback) DoneCallback {
	if callback == nil {
		return func(error) {}
	}
	return callback
}

// appendFile keep the position of a file defined twice
func appendFile(files []pendingFile, name string, code string) []pendingFile {
	for i := range files {
		if files[i].name == name {
			files[i].code = code
			return files
		}
	}
	return append(files, pendingFile{name: name, code: code})
}

func appendCall(calls []pendingCall, name string, callback CallCallback) []pendingCall {
	for i := range calls {
		if calls[i].name == name {
			calls[i].callback = callback
			return calls
		}
	}
	return append(calls, pendingCall{name: name, callback: callback})
}

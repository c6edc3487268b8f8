package runtime

// MainFile the name of the main entry script
const MainFile = "main.js"

// Interpreter the embedded JavaScript engine consumed by the node engine.
// An interpreter is not thread-safe, every method must be called from the
// goroutine that owns it.
type Interpreter interface {
	// DefineFile define (or replace) the source of a named script file,
	// it can be loaded from script with require(name)
	DefineFile(name string, source string) error

	// DefineMainFile define the main entry script, it runs on Start
	DefineMainFile(source string) error

	// SetNative register a native extension function, it is exposed to
	// script as process.natives[name]
	SetNative(name string, fn NativeFunc) error

	// Start start the runtime and run the main file
	Start() error

	// Evaluate evaluate the source code, the completion value is discarded
	Evaluate(source string, origin string) error

	// EvaluateFunction evaluate the source code, the completion value must be a function
	EvaluateFunction(source string, origin string) (Function, error)

	// Loop run the pending jobs of the interpreter event loop until idle
	Loop() error

	// Stop stop the runtime and release its resources
	Stop() error
}

// Function a script function handle owned by an interpreter
type Function interface {
	Call(args ...string) error
	Release()
}

// Argument a script value passed to a native extension function
type Argument interface {
	String() string
	Int32() int32
	IsNullish() bool

	// Property read a property of an object value as a string
	Property(name string) (string, bool)
}

// NativeFunc a native extension function invoked from script
type NativeFunc func(args ...Argument)

// Scheduler posts work to the goroutine that owns the interpreter
type Scheduler interface {
	Dispatch(work func()) bool
}

// Option the interpreter option
type Option struct {
	Root      string    // the working directory, used to resolve script files that are not defined
	Scheduler Scheduler // used by timers, can be nil
	CacheSize int       // the compiled script cache size, 0 uses the default
}

// Factory create interpreters of one backend
type Factory interface {
	// Setup the process-wide one-time initialization
	Setup(root string) error
	New(option Option) (Interpreter, error)
}

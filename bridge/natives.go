package bridge

import (
	"strings"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
	"github.com/yaoapp/node/runtime"
)

// The native extension function names, exposed as process.natives.<name>
const (
	NativeLog    = "log"
	NativeCall   = "call"
	NativeResult = "result"
	NativeError  = "error"
)

// Console severities, the constants in the bootstrap script must match
const (
	SeverityError   = 1
	SeverityWarning = 2
	SeverityInfo    = 3
	SeverityVerbose = 4
	SeverityTrace   = 5
)

// NewNatives create the native entry points backed by the registry
func NewNatives(registry *Registry, prefix string) *Natives {
	return &Natives{registry: registry, prefix: prefix}
}

// Bind register the native entry points on the interpreter
func (natives *Natives) Bind(interpreter runtime.Interpreter) error {
	fns := map[string]runtime.NativeFunc{
		NativeLog:    natives.log,
		NativeCall:   natives.call,
		NativeResult: natives.result,
		NativeError:  natives.error,
	}

	for _, name := range []string{NativeLog, NativeCall, NativeResult, NativeError} {
		if err := interpreter.SetNative(name, fns[name]); err != nil {
			return err
		}
	}
	return nil
}

// WithStackMapper rewrite the stack traces of the console messages
func (natives *Natives) WithStackMapper(mapper func(message string) string) *Natives {
	natives.mapper = mapper
	return natives
}

// Log write a console message to the log
func (natives *Natives) Log(severity int, message string) {
	if natives.mapper != nil && strings.Contains(message, "\n") {
		message = natives.mapper(message)
	}

	switch severity {
	case SeverityError:
		log.Error("%s%s", natives.prefix, message)
	case SeverityWarning:
		log.Warn("%s%s", natives.prefix, message)
	case SeverityInfo:
		log.Info("%s%s", natives.prefix, message)
	case SeverityVerbose:
		log.Debug("%s%s", natives.prefix, message)
	default:
		log.Trace("%s%s", natives.prefix, message)
	}
}

// Result complete a one-shot call with the result JSON
func (natives *Natives) Result(callID string, resultJSON string) {
	token, err := ParseToken(callID)
	if err != nil {
		log.Warn("[bridge] invalid result callback ID: %s", err.Error())
		return
	}

	log.Trace("[bridge] result(%s, %s)", callID, resultJSON)
	if !natives.registry.Resolve(token, resultJSON) {
		log.Warn("[bridge] result callback %s is not registered", callID)
	}
}

// Error complete a one-shot call with the script error message
func (natives *Natives) Error(callID string, message string, hasMessage bool) {
	token, err := ParseToken(callID)
	if err != nil {
		log.Warn("[bridge] invalid error callback ID: %s", err.Error())
		return
	}

	if !hasMessage {
		message = exception.UnknownScriptError
	}

	log.Trace("[bridge] error(%s, %s)", callID, message)
	if !natives.registry.Reject(token, exception.New(exception.EngineEvaluation, "%s", message)) {
		log.Warn("[bridge] error callback %s is not registered", callID)
	}
}

// Call invoke a call-from-script callback
func (natives *Natives) Call(callID string, argsJSON string) {
	token, err := ParseToken(callID)
	if err != nil {
		log.Warn("[bridge] invalid call callback ID: %s", err.Error())
		return
	}

	name, has := natives.registry.Name(token)
	if !has {
		log.Warn("[bridge] call callback %s is not registered", callID)
		return
	}

	log.Trace("[bridge] call %s(%s)", name, argsJSON)
	natives.registry.Invoke(token, argsJSON)
}

func (natives *Natives) log(args ...runtime.Argument) {
	if len(args) != 2 {
		log.Warn("[bridge] invalid log callback.")
		return
	}
	natives.Log(int(args[0].Int32()), args[1].String())
}

func (natives *Natives) result(args ...runtime.Argument) {
	if len(args) != 2 {
		log.Warn("[bridge] invalid result callback.")
		return
	}

	resultJSON := ""
	if !args[1].IsNullish() {
		resultJSON = args[1].String()
	}
	natives.Result(args[0].String(), resultJSON)
}

func (natives *Natives) error(args ...runtime.Argument) {
	if len(args) != 2 {
		log.Warn("[bridge] invalid error callback.")
		return
	}

	message, has := "", false
	if !args[1].IsNullish() {
		message, has = args[1].Property("message")
	}
	natives.Error(args[0].String(), message, has)
}

func (natives *Natives) call(args ...runtime.Argument) {
	if len(args) != 2 {
		log.Warn("[bridge] invalid call callback.")
		return
	}

	argsJSON := ""
	if !args[1].IsNullish() {
		argsJSON = args[1].String()
	}
	natives.Call(args[0].String(), argsJSON)
}

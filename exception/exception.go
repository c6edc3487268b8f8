package exception

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
	kun "github.com/yaoapp/kun/exception"
)

// Kind the error category of an engine operation
type Kind uint8

const (
	// InvalidArgument a required parameter is missing or malformed
	InvalidArgument Kind = iota + 1

	// InvalidState the operation is not valid for the current lifecycle state
	InvalidState

	// EngineEvaluation the script raised or the evaluation failed
	EngineEvaluation

	// EngineInternal an interpreter primitive (initialize, start, stop) failed
	EngineInternal
)

// UnknownScriptError the message used when a script error carries no message
const UnknownScriptError = "Unknown script error."

// Exception the error returned by the engine operations. It is a kun
// exception (Message, Code, Context) with a typed Kind, the Context holds
// the kind name.
type Exception struct {
	kun.Exception
	Kind  Kind `json:"kind"`
	cause error
	stack string
}

var codes = map[Kind]int{
	InvalidArgument:  400,
	InvalidState:     409,
	EngineEvaluation: 500,
	EngineInternal:   500,
}

// New create a new exception
func New(kind Kind, format string, args ...interface{}) *Exception {
	return &Exception{
		Exception: *kun.New(format, codes[kind], args...).Ctx(kind.String()),
		Kind:      kind,
	}
}

// KindOf the kind of an HTTP-like code, used for the kun exceptions
func KindOf(code int) Kind {
	switch {
	case code == 409:
		return InvalidState
	case code >= 400 && code < 500:
		return InvalidArgument
	}
	return EngineInternal
}

// Wrap wrap an error as an exception of the given kind. An error that is
// already an exception is returned as is.
func Wrap(kind Kind, err error) *Exception {
	if err == nil {
		return nil
	}

	var ex *Exception
	if errors.As(err, &ex) {
		return ex
	}

	e := New(kind, "%s", err.Error())
	e.cause = err
	if kind == EngineInternal {
		e.stack = goerrors.Wrap(err, 1).ErrorStack()
	}
	return e
}

// Recover convert a recovered panic value to an exception. The kun
// exceptions keep their code.
func Recover(recovered interface{}) *Exception {
	switch v := recovered.(type) {
	case nil:
		return nil
	case *Exception:
		return v
	case *kun.Exception:
		return fromKun(*v)
	case kun.Exception:
		return fromKun(v)
	case error:
		return Wrap(EngineInternal, v)
	default:
		e := New(EngineInternal, "%s", kun.Catch(recovered).Error())
		e.stack = goerrors.Wrap(recovered, 2).ErrorStack()
		return e
	}
}

func fromKun(ex kun.Exception) *Exception {
	kind := KindOf(ex.Code)
	if ex.Context == nil {
		ex.Context = kind.String()
	}
	return &Exception{Exception: ex, Kind: kind}
}

// Error implements the error interface
func (e *Exception) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Exception) Unwrap() error {
	return e.cause
}

// Stack the go stack captured for internal errors, empty otherwise
func (e *Exception) Stack() string {
	return e.stack
}

// Is check if the error is an exception of the given kind
func Is(err error, kind Kind) bool {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex.Kind == kind
	}
	return false
}

func (kind Kind) String() string {
	switch kind {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidState:
		return "InvalidState"
	case EngineEvaluation:
		return "EngineEvaluation"
	case EngineInternal:
		return "EngineInternal"
	}
	return fmt.Sprintf("Kind(%d)", kind)
}

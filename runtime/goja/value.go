package goja

import (
	"github.com/dop251/goja"
	"github.com/yaoapp/node/runtime"
)

// argument wraps a goja value passed to a native function
type argument struct {
	value goja.Value
}

func arguments(call goja.FunctionCall) []runtime.Argument {
	args := make([]runtime.Argument, 0, len(call.Arguments))
	for _, value := range call.Arguments {
		args = append(args, argument{value: value})
	}
	return args
}

func (arg argument) String() string {
	if arg.IsNullish() {
		return ""
	}
	return arg.value.String()
}

func (arg argument) Int32() int32 {
	if arg.IsNullish() {
		return 0
	}
	return int32(arg.value.ToInteger())
}

func (arg argument) IsNullish() bool {
	return arg.value == nil || goja.IsUndefined(arg.value) || goja.IsNull(arg.value)
}

func (arg argument) Property(name string) (string, bool) {
	obj, ok := arg.value.(*goja.Object)
	if !ok {
		return "", false
	}

	value := obj.Get(name)
	if value == nil || goja.IsUndefined(value) {
		return "", false
	}
	return value.String(), true
}

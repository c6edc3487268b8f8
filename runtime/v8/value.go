package v8

import (
	"github.com/yaoapp/node/runtime"
	"rogchap.com/v8go"
)

// argument wraps a v8 value passed to a native function
type argument struct {
	value *v8go.Value
}

func arguments(values []*v8go.Value) []runtime.Argument {
	args := make([]runtime.Argument, 0, len(values))
	for _, value := range values {
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
	return arg.value.Int32()
}

func (arg argument) IsNullish() bool {
	return arg.value == nil || arg.value.IsNullOrUndefined()
}

func (arg argument) Property(name string) (string, bool) {
	if arg.value == nil || !arg.value.IsObject() {
		return "", false
	}

	obj, err := arg.value.AsObject()
	if err != nil {
		return "", false
	}

	value, err := obj.Get(name)
	if err != nil || value.IsUndefined() {
		return "", false
	}
	return value.String(), true
}

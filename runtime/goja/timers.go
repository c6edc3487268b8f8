package goja

import (
	"time"

	"github.com/dop251/goja"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/runtime"
)

// bindTimers define the timer globals
func (interp *Interpreter) bindTimers(vm *goja.Runtime, timers *runtime.Timers) {

	callback := func(name string, call goja.FunctionCall) func() {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("%s: the callback must be a function", name))
		}

		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		return func() {
			if interp.vm == nil {
				return
			}
			if _, err := fn(goja.Undefined(), args...); err != nil {
				log.Error("[goja] %s: %s", name, evaluationError(err).Error())
			}
		}
	}

	delay := func(call goja.FunctionCall) time.Duration {
		return time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	}

	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(timers.Add(delay(call), false, callback("setTimeout", call)))
	})

	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(timers.Add(delay(call), true, callback("setInterval", call)))
	})

	vm.Set("setImmediate", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("setImmediate: the callback must be a function"))
		}
		args := append([]goja.Value{}, call.Arguments[1:]...)
		timers.Immediate(func() {
			if interp.vm == nil {
				return
			}
			if _, err := fn(goja.Undefined(), args...); err != nil {
				log.Error("[goja] setImmediate: %s", evaluationError(err).Error())
			}
		})
		return goja.Undefined()
	})

	cancel := func(call goja.FunctionCall) goja.Value {
		timers.Cancel(call.Argument(0).ToInteger())
		return goja.Undefined()
	}
	vm.Set("clearTimeout", cancel)
	vm.Set("clearInterval", cancel)
}

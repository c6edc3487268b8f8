package bridge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/node/exception"
	"github.com/yaoapp/node/runtime"
)

type arg struct {
	value   interface{}
	message *string
}

func (a arg) String() string { return fmt.Sprintf("%v", a.value) }

func (a arg) Int32() int32 {
	if v, ok := a.value.(int); ok {
		return int32(v)
	}
	return 0
}

func (a arg) IsNullish() bool { return a.value == nil && a.message == nil }

func (a arg) Property(name string) (string, bool) {
	if name == "message" && a.message != nil {
		return *a.message, true
	}
	return "", false
}

func TestToken(t *testing.T) {
	token, err := ParseToken(Token(0x1f).String())
	require.NoError(t, err)
	assert.Equal(t, Token(31), token)
	assert.Equal(t, "1f", token.String())

	for _, text := range []string{"", "0", "000", "zz", "-1", "1ffffffffffffffffff"} {
		_, err := ParseToken(text)
		assert.Error(t, err, text)
	}
}

func TestRegistryOneShot(t *testing.T) {
	registry := NewRegistry()
	results := []string{}
	first := registry.AddOneShot(func(resultJSON string, err error) { results = append(results, resultJSON) })
	second := registry.AddOneShot(func(resultJSON string, err error) {})

	assert.NotEqual(t, Token(0), first)
	assert.Greater(t, uint64(second), uint64(first))
	assert.Equal(t, 2, registry.Len())

	assert.True(t, registry.Resolve(first, "4"))
	assert.False(t, registry.Resolve(first, "5"))
	assert.Equal(t, []string{"4"}, results)
	assert.False(t, registry.Has(first))
	assert.True(t, registry.Has(second))

	registry.Release(second)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryReject(t *testing.T) {
	registry := NewRegistry()
	var got error
	token := registry.AddOneShot(func(resultJSON string, err error) {
		assert.Empty(t, resultJSON)
		got = err
	})
	assert.True(t, registry.Reject(token, exception.New(exception.EngineEvaluation, "boom")))
	assert.EqualError(t, got, "boom")
	assert.False(t, registry.Reject(token, fmt.Errorf("again")))
}

func TestRegistryPersistent(t *testing.T) {
	registry := NewRegistry()
	calls := []string{}
	token := registry.AddPersistent("notify", func(argsJSON string) { calls = append(calls, argsJSON) })

	assert.True(t, registry.Invoke(token, "[1]"))
	assert.True(t, registry.Invoke(token, "[2]"))
	assert.Equal(t, []string{"[1]", "[2]"}, calls)
	assert.True(t, registry.Has(token))

	name, has := registry.Name(token)
	assert.True(t, has)
	assert.Equal(t, "notify", name)

	// persistent entries can not be completed as one-shot calls
	assert.False(t, registry.Resolve(token, "1"))
	assert.True(t, registry.Has(token))

	oneShot := registry.AddOneShot(func(string, error) {})
	assert.False(t, registry.Invoke(oneShot, "[]"))
	_, has = registry.Name(oneShot)
	assert.False(t, has)
}

func TestRegistryClear(t *testing.T) {
	registry := NewRegistry()
	var pending error
	registry.AddOneShot(func(resultJSON string, err error) { pending = err })
	registry.AddPersistent("notify", func(string) { t.Fatal("persistent callbacks are not invoked on clear") })

	registry.Clear()
	assert.Equal(t, 0, registry.Len())
	assert.True(t, exception.Is(pending, exception.InvalidState))
}

func TestRegistryPanic(t *testing.T) {
	registry := NewRegistry()
	token := registry.AddPersistent("explode", func(string) { panic("host callback failed") })
	assert.NotPanics(t, func() { registry.Invoke(token, "[]") })

	oneShot := registry.AddOneShot(func(string, error) { panic("result callback failed") })
	assert.NotPanics(t, func() { registry.Resolve(oneShot, "1") })
	assert.False(t, registry.Has(oneShot))
}

func TestNatives(t *testing.T) {
	registry := NewRegistry()
	natives := NewNatives(registry, "")

	var result string
	var resultErr error
	token := registry.AddOneShot(func(resultJSON string, err error) { result, resultErr = resultJSON, err })
	natives.result(arg{value: token.String()}, arg{value: `"Hello from node!"`})
	assert.Equal(t, `"Hello from node!"`, result)
	assert.NoError(t, resultErr)

	// undefined results come back empty
	token = registry.AddOneShot(func(resultJSON string, err error) { result, resultErr = resultJSON, err })
	natives.result(arg{value: token.String()}, arg{})
	assert.Equal(t, "", result)

	message := "test"
	token = registry.AddOneShot(func(resultJSON string, err error) { result, resultErr = resultJSON, err })
	natives.error(arg{value: token.String()}, arg{message: &message})
	assert.True(t, exception.Is(resultErr, exception.EngineEvaluation))
	assert.EqualError(t, resultErr, "test")

	token = registry.AddOneShot(func(resultJSON string, err error) { result, resultErr = resultJSON, err })
	natives.error(arg{value: token.String()}, arg{value: "not an error object"})
	assert.EqualError(t, resultErr, exception.UnknownScriptError)

	args := ""
	token = registry.AddPersistent("testTest", func(argsJSON string) { args = argsJSON })
	natives.call(arg{value: token.String()}, arg{value: `[null,0,"test"]`})
	assert.Equal(t, `[null,0,"test"]`, args)
}

func TestNativesRejectInvalidTokens(t *testing.T) {
	registry := NewRegistry()
	natives := NewNatives(registry, "")
	called := false
	registry.AddOneShot(func(string, error) { called = true })

	assert.NotPanics(t, func() {
		natives.Result("0", "1")
		natives.Result("not-hex", "1")
		natives.Error("", "boom", true)
		natives.Call("0", "[]")
		natives.Call("ffff", "[]") // unknown
		natives.result(arg{value: "1"})
		natives.log(arg{value: 1})
		natives.Log(SeverityInfo, "Node: Loaded main.js.")
	})
	assert.False(t, called)
	assert.Equal(t, 1, registry.Len())
}

type binder struct {
	runtime.Interpreter
	natives map[string]runtime.NativeFunc
}

func (b *binder) SetNative(name string, fn runtime.NativeFunc) error {
	b.natives[name] = fn
	return nil
}

func TestBind(t *testing.T) {
	b := &binder{natives: map[string]runtime.NativeFunc{}}
	require.NoError(t, NewNatives(NewRegistry(), "").Bind(b))
	assert.Len(t, b.natives, 4)
	for _, name := range []string{NativeLog, NativeCall, NativeResult, NativeError} {
		assert.NotNil(t, b.natives[name], name)
	}
}

func TestCallFromScript(t *testing.T) {
	assert.True(t, ValidFunctionName("testTest"))
	assert.True(t, ValidFunctionName("$on_event2"))
	assert.False(t, ValidFunctionName("2fast"))
	assert.False(t, ValidFunctionName("a.b"))
	assert.False(t, ValidFunctionName("x(){}; evil"))

	code := CallFromScript("testTest", Token(0xab))
	assert.Contains(t, code, `globalThis["testTest"] = function testTest()`)
	assert.Contains(t, code, `process.natives.call('ab'`)
}

func TestEntryFields(t *testing.T) {
	e := &entry{name: "notify", registeredAt: time.Now().Add(-time.Second)}
	fields := e.fields(Token(7))
	assert.Equal(t, "7", fields["token"])
	assert.Equal(t, "notify", fields["function"])

	elapsed, err := time.ParseDuration(fields["elapsed"].(string))
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, time.Second)

	fields = (&entry{registeredAt: time.Now()}).fields(Token(8))
	assert.NotContains(t, fields, "function")
}

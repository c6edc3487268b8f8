package v8

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/node/dispatcher"
	"github.com/yaoapp/node/exception"
	"github.com/yaoapp/node/runtime"
)

type recorder struct {
	mutex sync.Mutex
	calls [][]string
}

func (r *recorder) native(args ...runtime.Argument) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	values := []string{}
	for _, arg := range args {
		values = append(values, arg.String())
	}
	r.calls = append(r.calls, values)
}

func (r *recorder) all() [][]string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([][]string{}, r.calls...)
}

func prepare(t *testing.T, option runtime.Option) (*Interpreter, *recorder) {
	if option.Root == "" {
		option.Root = t.TempDir()
	}
	interp, err := New(option)
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, interp.SetNative("result", rec.native))
	t.Cleanup(func() { interp.Stop() })
	return interp, rec
}

func TestRegistered(t *testing.T) {
	factory, err := runtime.Select(Name)
	require.NoError(t, err)
	assert.NoError(t, factory.Setup(t.TempDir()))
	assert.Error(t, factory.Setup(filepath.Join(t.TempDir(), "missing")))
}

func TestStartMainFile(t *testing.T) {
	interp, rec := prepare(t, runtime.Option{})
	require.NoError(t, interp.DefineMainFile(`process.natives.result("main", typeof require, typeof module);`))
	require.NoError(t, interp.Start())
	assert.Equal(t, [][]string{{"main", "function", "object"}}, rec.all())

	assert.True(t, exception.Is(interp.Start(), exception.InvalidState))
}

func TestEvaluate(t *testing.T) {
	interp, rec := prepare(t, runtime.Option{})
	require.NoError(t, interp.Start())
	require.NoError(t, interp.Evaluate(`process.natives.result(String(2 + 2))`, "eval.js"))
	require.NoError(t, interp.Evaluate(`process.natives.result(String(2 + 2))`, "eval.js"))
	assert.Equal(t, [][]string{{"4"}, {"4"}}, rec.all())

	err := interp.Evaluate(`throw new Error("boom")`, "throw.js")
	assert.True(t, exception.Is(err, exception.EngineEvaluation))
	assert.Contains(t, err.Error(), "boom")

	err = interp.Evaluate(`function (`, "syntax.js")
	assert.True(t, exception.Is(err, exception.EngineEvaluation))
}

func TestEvaluateFunction(t *testing.T) {
	interp, rec := prepare(t, runtime.Option{})
	require.NoError(t, interp.Start())

	fn, err := interp.EvaluateFunction(`(function (a, b) { process.natives.result(a, b); })`, "fn.js")
	require.NoError(t, err)
	require.NoError(t, fn.Call("1", "hello"))
	assert.Equal(t, [][]string{{"1", "hello"}}, rec.all())

	fn.Release()
	assert.True(t, exception.Is(fn.Call(), exception.InvalidState))

	_, err = interp.EvaluateFunction(`42`, "number.js")
	assert.True(t, exception.Is(err, exception.EngineEvaluation))
}

func TestPromise(t *testing.T) {
	interp, rec := prepare(t, runtime.Option{})
	require.NoError(t, interp.Start())
	require.NoError(t, interp.Evaluate(`Promise.resolve("later").then(function (v) { process.natives.result(v); })`, "promise.js"))
	require.NoError(t, interp.Loop())
	assert.Equal(t, [][]string{{"later"}}, rec.all())
}

func TestNativeArguments(t *testing.T) {
	interp, _ := prepare(t, runtime.Option{})
	var captured []string
	var nullish []bool
	var message string
	var hasMessage bool
	require.NoError(t, interp.SetNative("capture", func(args ...runtime.Argument) {
		for _, arg := range args {
			captured = append(captured, arg.String())
			nullish = append(nullish, arg.IsNullish())
		}
		message, hasMessage = args[3].Property("message")
	}))
	require.NoError(t, interp.Start())
	require.NoError(t, interp.Evaluate(`process.natives.capture(null, 3, "x", new Error("bad"))`, "args.js"))

	assert.Equal(t, []string{"", "3", "x", "Error: bad"}, captured)
	assert.Equal(t, []bool{true, false, false, false}, nullish)
	assert.True(t, hasMessage)
	assert.Equal(t, "bad", message)
}

func TestRequire(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "disk.js"), []byte(`module.exports = "disk";`), 0644))

	interp, rec := prepare(t, runtime.Option{Root: root})
	require.NoError(t, interp.DefineFile("test.js", `module.exports = { hello: function () { return "Hello from test.js"; } };`))
	require.NoError(t, interp.DefineFile("data.json", `{"name": "data"}`))
	require.NoError(t, interp.Start())

	require.NoError(t, interp.Evaluate(`process.natives.result(require("test.js").hello())`, "require.js"))
	require.NoError(t, interp.Evaluate(`process.natives.result(require("./disk"))`, "disk.js"))
	require.NoError(t, interp.Evaluate(`process.natives.result(require("data.json").name)`, "json.js"))
	assert.Equal(t, [][]string{{"Hello from test.js"}, {"disk"}, {"data"}}, rec.all())

	err := interp.Evaluate(`require("missing.js")`, "missing.js")
	assert.True(t, exception.Is(err, exception.EngineEvaluation))
	assert.Contains(t, err.Error(), "Cannot find module")
}

func TestStop(t *testing.T) {
	interp, _ := prepare(t, runtime.Option{})
	require.NoError(t, interp.Start())
	require.NoError(t, interp.Stop())
	require.NoError(t, interp.Stop())

	assert.True(t, exception.Is(interp.Evaluate(`1`, "stopped.js"), exception.InvalidState))
	assert.True(t, exception.Is(interp.Loop(), exception.InvalidState))
}

func TestTimers(t *testing.T) {
	worker := dispatcher.New("v8-test")
	require.NoError(t, worker.Initialize())
	defer worker.Shutdown()

	var interp *Interpreter
	rec := &recorder{}
	worker.DispatchAndWait(func() {
		var err error
		interp, err = New(runtime.Option{Root: t.TempDir(), Scheduler: worker})
		if err != nil {
			return
		}
		interp.SetNative("result", rec.native)
		interp.Start()
		interp.Evaluate(`
			setTimeout(function (v) { process.natives.result("timeout", v); }, 10, "a");
			clearTimeout(setTimeout(function () { process.natives.result("cancelled"); }, 10));
			var count = 0;
			var tick = setInterval(function () {
				count++;
				if (count === 2) { clearInterval(tick); process.natives.result("interval"); }
			}, 5);
		`, "timers.js")
	})
	require.NotNil(t, interp)

	assert.Eventually(t, func() bool { return len(rec.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, [][]string{{"timeout", "a"}, {"interval"}}, rec.all())

	worker.DispatchAndWait(func() { interp.Stop() })
}

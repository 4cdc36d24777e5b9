package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/stdlib"
	"github.com/wudi/gza/values"
	"github.com/wudi/gza/vm"
)

func newTestEngine() *engine.Engine {
	cfg := engine.DefaultConfig()
	eng := engine.Create(cfg)
	eng.RegisterHelpers(stdlib.Install)
	return eng
}

func TestLiteralsAndArithmetic(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	result, err := eng.RunSource(`return 1 + 2 * 3 - 4 / 2`)
	require.NoError(t, err)
	require.Equal(t, float64(5), result.Num)
}

func TestStringConcat(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	result, err := eng.RunSource(`return "foo" .. "bar" .. 1`)
	require.NoError(t, err)
	require.Equal(t, "foobar1", result.Str)
}

func TestRecursiveFibonacci(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	script := `
function fib(n) {
	if n < 2 {
		return n
	}
	return fib(n - 1) + fib(n - 2)
}
return fib(10)
`
	result, err := eng.RunSource(script)
	require.NoError(t, err)
	require.Equal(t, float64(55), result.Num)
}

func TestGenericForOverArray(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	script := `
var a = [10, 20, 30]
var total = 0
for k, v in array_iter(a) {
	total = total + v
}
return total
`
	result, err := eng.RunSource(script)
	require.NoError(t, err)
	require.Equal(t, float64(60), result.Num)
}

func TestForRangeHalfOpenIntegerRange(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	script := `
var arr = [1, 2, 3]
var t = 0
for i in 0 .. 3 {
	t = t + arr[i]
}
return t
`
	result, err := eng.RunSource(script)
	require.NoError(t, err)
	require.Equal(t, float64(6), result.Num)
}

func TestGlobalsPersistAcrossLoadScript(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	script1, err := eng.LoadScript(`var counter = 0
function bump() {
	counter = counter + 1
	return counter
}
`)
	require.NoError(t, err)
	_, err = eng.Run(script1)
	require.NoError(t, err)
	script2, err := eng.LoadScript(`return bump()`)
	require.NoError(t, err)

	r1, err := eng.Run(script2)
	require.NoError(t, err)
	require.Equal(t, float64(1), r1.Num)

	r2, err := eng.Run(script2)
	require.NoError(t, err)
	require.Equal(t, float64(2), r2.Num)
}

func TestHostRegisterFunctionCallableFromScript(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	var seen []string
	eng.RegisterFunction("host_capture", 1, func(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
		seen = append(seen, args[0].Str)
		return values.Nil(), nil
	})

	_, err := eng.RunSource(`host_capture("hi")`)
	require.NoError(t, err)
	require.Equal(t, []string{"hi"}, seen)
}

func TestHostCallByName(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	_, err := eng.RunSource(`
function square(n) {
	return n * n
}
`)
	require.NoError(t, err)

	result, err := eng.Call("square", values.Number(9))
	require.NoError(t, err)
	require.Equal(t, float64(81), result.Num)
}

func TestExecutionTimeout(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxInstructions = 0
	eng := engine.Create(cfg)
	defer eng.Close()

	_, err := eng.RunSource(`
var i = 0
while true {
	i = i + 1
}
`)
	require.Error(t, err)
	_, ok := err.(*vm.ExecutionTimeout)
	require.True(t, ok, "expected *vm.ExecutionTimeout, got %T: %v", err, err)
}

func TestMemoryLimitExceeded(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.MemoryLimitBytes = 64
	eng := engine.Create(cfg)
	defer eng.Close()

	_, err := eng.RunSource(`
var s = ""
while true {
	s = s .. "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"
}
`)
	require.Error(t, err)
}

func TestSecurityContextDefaultsDenyCapabilities(t *testing.T) {
	sec := sandbox.DefaultSecurityContext()
	require.Error(t, sec.Require(sandbox.CapIO))
	require.Error(t, sec.Require(sandbox.CapSyscalls))
}

func TestSysRandomDeniedUnderDeterministicEngine(t *testing.T) {
	eng := newTestEngine()
	defer eng.Close()

	_, err := eng.RunSource(`return sys_random()`)
	require.Error(t, err)
	_, ok := err.(*vm.SecurityViolation)
	require.True(t, ok, "expected *vm.SecurityViolation, got %T: %v", err, err)
}

func TestArenaModeBulkReleasesOnClose(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.MemoryLimitBytes = 0
	cfg.UseArena = true
	eng := engine.Create(cfg)

	_, err := eng.RunSource(`
var s = ""
var i = 0
while i < 100 {
	s = s .. "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"
	i = i + 1
}
return s
`)
	require.NoError(t, err)
	require.Greater(t, eng.Memory().Used(), int64(0))

	eng.Close()
	require.Equal(t, int64(0), eng.Memory().Used())
}

func TestSysRandomAllowedWhenNotDeterministic(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Deterministic = false
	eng := engine.Create(cfg)
	defer eng.Close()
	eng.RegisterHelpers(stdlib.Install)

	result, err := eng.RunSource(`return sys_random()`)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Num, float64(0))
	require.Less(t, result.Num, float64(1))
}

package stdlib

import (
	"testing"

	"github.com/wudi/gza/values"
)

func arrayAt(t *testing.T, v values.ScriptValue, i int) values.ScriptValue {
	t.Helper()
	arr, ok := v.Agg.(*values.Array)
	if !ok {
		t.Fatalf("expected array result, got %v", v)
	}
	el, ok := arr.Get(i)
	if !ok {
		t.Fatalf("index %d out of range", i)
	}
	return el
}

func TestPatternMatchWholeMatchNoCaptures(t *testing.T) {
	result, err := patternMatch(nil, []values.ScriptValue{values.String("hello world"), values.String("w%a+")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arrayAt(t, result, 0).Str != "world" {
		t.Errorf("got %v", result)
	}
}

func TestPatternMatchWithCaptures(t *testing.T) {
	result, err := patternMatch(nil, []values.ScriptValue{values.String("key=value"), values.String("(%a+)=(%a+)")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arrayAt(t, result, 0).Str != "key" || arrayAt(t, result, 1).Str != "value" {
		t.Errorf("got %v", result)
	}
}

func TestPatternMatchNoMatchReturnsNil(t *testing.T) {
	result, err := patternMatch(nil, []values.ScriptValue{values.String("abc"), values.String("%d+")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != values.KindNil {
		t.Errorf("expected Nil, got %v", result)
	}
}

func TestPatternFindReturnsOneBasedSpan(t *testing.T) {
	result, err := patternFind(nil, []values.ScriptValue{values.String("hello world"), values.String("world")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arrayAt(t, result, 0).Num != 7 || arrayAt(t, result, 1).Num != 11 {
		t.Errorf("got %v", result)
	}
}

func TestPatternGsubBasicReplacement(t *testing.T) {
	result, err := patternGsub(nil, []values.ScriptValue{values.String("hello world"), values.String("o"), values.String("0")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Str != "hell0 w0rld" {
		t.Errorf("got %q", result.Str)
	}
}

func TestPatternGsubBackreference(t *testing.T) {
	result, err := patternGsub(nil, []values.ScriptValue{values.String("key=value"), values.String("(%a+)=(%a+)"), values.String("%2=%1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Str != "value=key" {
		t.Errorf("got %q", result.Str)
	}
}

func TestPatternGsubLiteralPercent(t *testing.T) {
	result, err := patternGsub(nil, []values.ScriptValue{values.String("100"), values.String("%d+"), values.String("%%done")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Str != "%done" {
		t.Errorf("got %q", result.Str)
	}
}

func TestPatternGmatchIteratesAllMatches(t *testing.T) {
	result, err := patternGmatch(nil, []values.ScriptValue{values.String("one two three"), values.String("%a+")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, ok := result.Agg.(*values.Function)
	if !ok || !fn.IsNative() {
		t.Fatalf("expected a native iterator function, got %v", result)
	}

	var words []string
	for {
		r, err := fn.Native(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ok := arrayAt(t, r, 2)
		if !ok.Truthy() {
			break
		}
		words = append(words, arrayAt(t, arrayAt(t, r, 1), 0).Str)
	}
	if len(words) != 3 || words[0] != "one" || words[1] != "two" || words[2] != "three" {
		t.Errorf("got %v", words)
	}
}

func TestMatchBracketClassRangeAndNegation(t *testing.T) {
	result, err := patternMatch(nil, []values.ScriptValue{values.String("abc123"), values.String("[0-9]+")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arrayAt(t, result, 0).Str != "123" {
		t.Errorf("got %v", result)
	}

	result, err = patternMatch(nil, []values.ScriptValue{values.String("abc123"), values.String("[^0-9]+")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arrayAt(t, result, 0).Str != "abc" {
		t.Errorf("got %v", result)
	}
}

func TestAnchoredPatternOnlyMatchesAtStart(t *testing.T) {
	result, err := patternMatch(nil, []values.ScriptValue{values.String("  abc"), values.String("^%a+")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != values.KindNil {
		t.Error("expected no match since the pattern is anchored past leading spaces")
	}
}

func TestPositionCapture(t *testing.T) {
	result, err := patternMatch(nil, []values.ScriptValue{values.String("abc"), values.String("a()b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arrayAt(t, result, 0).Num != 2 {
		t.Errorf("expected position capture 2, got %v", result)
	}
}

package stdlib

import (
	"strings"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
)

// This file implements a Lua-style pattern matcher: character classes,
// bracket sets, quantifiers and anchors, captures, and %N backreferences in
// replacement strings. No file in the example pack implements a matcher
// like this directly (the PHP teacher defers to Go's regexp-backed preg_*
// built-ins, and none of the other examples embed a scripting language with
// its own pattern syntax), so it is grounded directly on the well-known
// recursive matching algorithm Lua's lstrlib.c uses, reimplemented from
// scratch in Go rather than ported line-for-line.

func installPattern(e *engine.Engine) {
	e.RegisterFunction("pattern_match", 2, patternMatch)
	e.RegisterFunction("pattern_find", 2, patternFind)
	e.RegisterFunction("pattern_gsub", 3, patternGsub)
	e.RegisterFunction("pattern_gmatch", 2, patternGmatch)
}

type capture struct {
	start int
	len   int // -1 while open, -2 for a position capture
}

type matchState struct {
	src, pat string
	caps     []capture
}

const maxCaptures = 32
const capUnfinished = -1
const capPosition = -2

// classEnd returns the index just past the single pattern item starting at p
// (a literal byte, a %-class, or a bracket set).
func classEnd(pat string, p int) int {
	c := pat[p]
	p++
	if c == '%' {
		if p >= len(pat) {
			return p
		}
		return p + 1
	}
	if c == '[' {
		if p < len(pat) && pat[p] == '^' {
			p++
		}
		for {
			if p >= len(pat) {
				return p
			}
			cc := pat[p]
			p++
			if cc == '%' {
				if p < len(pat) {
					p++
				}
			} else if cc == ']' {
				return p
			}
		}
	}
	return p
}

func matchClassChar(c, cl byte) bool {
	var res bool
	switch lower(cl) {
	case 'a':
		res = isAlpha(c)
	case 'd':
		res = c >= '0' && c <= '9'
	case 'l':
		res = c >= 'a' && c <= 'z'
	case 's':
		res = c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
	case 'u':
		res = c >= 'A' && c <= 'Z'
	case 'w':
		res = isAlpha(c) || (c >= '0' && c <= '9')
	case 'c':
		res = c < 32 || c == 127
	case 'p':
		res = isPunct(c)
	case 'x':
		res = isHex(c)
	default:
		return cl == c
	}
	if isUpperClass(cl) {
		return !res
	}
	return res
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
func isPunct(c byte) bool {
	return strings.IndexByte("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", c) >= 0
}
func isUpperClass(c byte) bool { return c >= 'A' && c <= 'Z' }
func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func matchBracketClass(c byte, pat string, p, ec int) bool {
	negate := false
	p++ // skip '['
	if pat[p] == '^' {
		negate = true
		p++
	}
	for p < ec {
		if pat[p] == '%' {
			p++
			if matchClassChar(c, pat[p]) {
				return !negate
			}
			p++
		} else if p+2 < ec && pat[p+1] == '-' {
			if pat[p] <= c && c <= pat[p+2] {
				return !negate
			}
			p += 3
		} else {
			if pat[p] == c {
				return !negate
			}
			p++
		}
	}
	return negate
}

func singleMatch(ms *matchState, s, p, ep int) bool {
	if s >= len(ms.src) {
		return false
	}
	c := ms.src[s]
	switch ms.pat[p] {
	case '.':
		return true
	case '%':
		return matchClassChar(c, ms.pat[p+1])
	case '[':
		return matchBracketClass(c, ms.pat, p, ep-1)
	default:
		return ms.pat[p] == c
	}
}

// doMatch attempts to match ms.pat[p:] against ms.src[s:], returning the end
// index of the match in src, or -1 on failure. Captures accumulate in ms.caps.
func doMatch(ms *matchState, s, p int) int {
	if p >= len(ms.pat) {
		return s
	}
	switch ms.pat[p] {
	case '(':
		if p+1 < len(ms.pat) && ms.pat[p+1] == ')' {
			return startCapture(ms, s, p+2, capPosition)
		}
		return startCapture(ms, s, p+1, capUnfinished)
	case ')':
		return endCapture(ms, s, p+1)
	case '$':
		if p+1 == len(ms.pat) {
			if s == len(ms.src) {
				return s
			}
			return -1
		}
	case '%':
		if p+1 < len(ms.pat) {
			nc := ms.pat[p+1]
			if nc >= '1' && nc <= '9' {
				return matchCaptureRef(ms, s, p, int(nc-'0'))
			}
		}
	}

	ep := classEnd(ms.pat, p)
	var suffix byte
	if ep < len(ms.pat) {
		suffix = ms.pat[ep]
	}
	matches := singleMatch(ms, s, p, ep)

	switch suffix {
	case '?':
		if matches {
			if r := doMatch(ms, s+1, ep+1); r != -1 {
				return r
			}
		}
		return doMatch(ms, s, ep+1)
	case '*':
		return maxExpand(ms, s, p, ep)
	case '+':
		if matches {
			return maxExpand(ms, s+1, p, ep)
		}
		return -1
	case '-':
		return minExpand(ms, s, p, ep)
	default:
		if !matches {
			return -1
		}
		return doMatch(ms, s+1, ep)
	}
}

func maxExpand(ms *matchState, s, p, ep int) int {
	count := 0
	for singleMatch(ms, s+count, p, ep) {
		count++
	}
	for count >= 0 {
		if r := doMatch(ms, s+count, ep+1); r != -1 {
			return r
		}
		count--
	}
	return -1
}

func minExpand(ms *matchState, s, p, ep int) int {
	for {
		if r := doMatch(ms, s, ep+1); r != -1 {
			return r
		}
		if singleMatch(ms, s, p, ep) {
			s++
		} else {
			return -1
		}
	}
}

func startCapture(ms *matchState, s, p, what int) int {
	ms.caps = append(ms.caps, capture{start: s, len: what})
	r := doMatch(ms, s, p)
	if r == -1 {
		ms.caps = ms.caps[:len(ms.caps)-1]
	}
	return r
}

func endCapture(ms *matchState, s, p int) int {
	idx := -1
	for i := len(ms.caps) - 1; i >= 0; i-- {
		if ms.caps[i].len == capUnfinished {
			idx = i
			break
		}
	}
	if idx == -1 {
		return -1
	}
	ms.caps[idx].len = s - ms.caps[idx].start
	r := doMatch(ms, s, p)
	if r == -1 {
		ms.caps[idx].len = capUnfinished
	}
	return r
}

func matchCaptureRef(ms *matchState, s, p, idx int) int {
	idx--
	if idx < 0 || idx >= len(ms.caps) || ms.caps[idx].len < 0 {
		return -1
	}
	cap := ms.src[ms.caps[idx].start : ms.caps[idx].start+ms.caps[idx].len]
	if strings.HasPrefix(ms.src[s:], cap) {
		return doMatch(ms, s+len(cap), p+2)
	}
	return -1
}

// runMatch tries the pattern at every starting offset from init onward
// (unless anchored with a leading ^), returning the matched span and
// captures, or ok=false.
func runMatch(src, pat string, init int) (start, end int, caps []capture, ok bool) {
	anchor := strings.HasPrefix(pat, "^")
	p := 0
	if anchor {
		p = 1
	}
	for s := init; s <= len(src); s++ {
		ms := &matchState{src: src, pat: pat}
		if e := doMatch(ms, s, p); e != -1 {
			return s, e, ms.caps, true
		}
		if anchor {
			break
		}
	}
	return 0, 0, nil, false
}

func capturesOrWhole(ctx *registry.BuiltinCallContext, src string, start, end int, caps []capture) (*values.Array, error) {
	arr, err := newChargedArray(ctx, len(caps))
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		arr.Push(values.String(src[start:end]))
		return arr, nil
	}
	for _, c := range caps {
		if c.len == capPosition {
			arr.Push(values.Number(float64(c.start + 1)))
			continue
		}
		l := c.len
		if l < 0 {
			l = 0
		}
		arr.Push(values.String(src[c.start : c.start+l]))
	}
	return arr, nil
}

func patternMatch(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "pattern_match")
	if err != nil {
		return values.Nil(), err
	}
	pat, err := expectString(args[1], "pattern_match")
	if err != nil {
		return values.Nil(), err
	}
	start, end, caps, ok := runMatch(s, pat, 0)
	if !ok {
		return values.Nil(), nil
	}
	arr, err := capturesOrWhole(ctx, s, start, end, caps)
	if err != nil {
		return values.Nil(), err
	}
	return values.FromArray(arr), nil
}

func patternFind(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "pattern_find")
	if err != nil {
		return values.Nil(), err
	}
	pat, err := expectString(args[1], "pattern_find")
	if err != nil {
		return values.Nil(), err
	}
	start, end, _, ok := runMatch(s, pat, 0)
	if !ok {
		return values.Nil(), nil
	}
	arr, err := newChargedArray(ctx, 2)
	if err != nil {
		return values.Nil(), err
	}
	arr.Push(values.Number(float64(start + 1)))
	arr.Push(values.Number(float64(end)))
	return values.FromArray(arr), nil
}

// patternGsub(s, pat, repl) replaces every non-overlapping match of pat in s
// with repl, expanding %1-%9 backreferences and %% to a literal percent.
func patternGsub(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "pattern_gsub")
	if err != nil {
		return values.Nil(), err
	}
	pat, err := expectString(args[1], "pattern_gsub")
	if err != nil {
		return values.Nil(), err
	}
	repl, err := expectString(args[2], "pattern_gsub")
	if err != nil {
		return values.Nil(), err
	}

	var out strings.Builder
	pos := 0
	for pos <= len(s) {
		start, end, caps, ok := runMatch(s, pat, pos)
		if !ok {
			break
		}
		out.WriteString(s[pos:start])
		out.WriteString(expandReplacement(s, repl, start, end, caps))
		if end > pos {
			pos = end
		} else {
			if end < len(s) {
				out.WriteByte(s[end])
			}
			pos = end + 1
		}
	}
	if pos < len(s) {
		out.WriteString(s[pos:])
	}
	result := out.String()
	if ctx != nil && ctx.Memory != nil {
		if err := ctx.Memory.Charge(sandbox.EstimateSize("string", len(result))); err != nil {
			return values.Nil(), err
		}
	}
	return values.String(result), nil
}

func expandReplacement(src, repl string, start, end int, caps []capture) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '%' || i+1 >= len(repl) {
			b.WriteByte(c)
			continue
		}
		i++
		nc := repl[i]
		switch {
		case nc == '%':
			b.WriteByte('%')
		case nc == '0':
			b.WriteString(src[start:end])
		case nc >= '1' && nc <= '9':
			idx := int(nc - '1')
			if idx < len(caps) {
				cc := caps[idx]
				if cc.len == capPosition {
					b.WriteString(values.Number(float64(cc.start + 1)).ToRawString())
				} else if cc.len >= 0 {
					b.WriteString(src[cc.start : cc.start+cc.len])
				}
			} else if idx == 0 && len(caps) == 0 {
				b.WriteString(src[start:end])
			}
		default:
			b.WriteByte(nc)
		}
	}
	return b.String()
}

// patternGmatch returns a single iterator function compatible with the
// single-iterator-function generic-for protocol (array_iter's [key, value,
// ok] convention): each call advances past the previous match and yields
// the next one as its "value".
func patternGmatch(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "pattern_gmatch")
	if err != nil {
		return values.Nil(), err
	}
	pat, err := expectString(args[1], "pattern_gmatch")
	if err != nil {
		return values.Nil(), err
	}
	pos := 0
	n := 0
	iter := func(_ []values.ScriptValue) (values.ScriptValue, error) {
		if pos > len(s) {
			return noMore(ctx)
		}
		start, end, caps, ok := runMatch(s, pat, pos)
		if !ok {
			pos = len(s) + 1
			return noMore(ctx)
		}
		if end > pos {
			pos = end
		} else {
			pos = end + 1
		}
		n++
		result, err := newChargedArray(ctx, 3)
		if err != nil {
			return values.Nil(), err
		}
		capArr, err := capturesOrWhole(ctx, s, start, end, caps)
		if err != nil {
			return values.Nil(), err
		}
		result.Push(values.Number(float64(n)))
		result.Push(values.FromArray(capArr))
		result.Push(values.Bool(true))
		return values.FromArray(result), nil
	}
	return values.FromFunc(values.NewNativeFunction("pattern_gmatch#next", iter)), nil
}

func noMore(ctx *registry.BuiltinCallContext) (values.ScriptValue, error) {
	result, err := newChargedArray(ctx, 3)
	if err != nil {
		return values.Nil(), err
	}
	result.Push(values.Nil())
	result.Push(values.Nil())
	result.Push(values.Bool(false))
	return values.FromArray(result), nil
}

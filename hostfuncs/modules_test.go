package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/domain/ports"
	"github.com/reglet-dev/scripthost/internal/testutil"
	"github.com/reglet-dev/scripthost/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strs(items ...string) entities.Value {
	out := make([]entities.Value, len(items))
	for i, s := range items {
		out[i] = entities.Str(s)
	}
	return entities.Arr(out...)
}

func TestCoreModule(t *testing.T) {
	eng := newEngine(t, WithModule(CoreModule()))

	tests := []struct {
		src  string
		want entities.Value
	}{
		{`len("héllo")`, entities.Int(5)},
		{`len([1, 2, 3])`, entities.Int(3)},
		{`len(#{a: 1})`, entities.Int(1)},
		{`let a = [1]; a.push(2); push(a, 3); a`, entities.Arr(entities.Int(1), entities.Int(2), entities.Int(3))},
		{`let a = [1, 2]; let x = a.pop(); [x, a.len()]`, entities.Arr(entities.Int(2), entities.Int(1))},
		{`[].pop()`, entities.Null},
		{`keys(#{b: 1, a: 2})`, strs("b", "a")},
		{`contains([1, "x"], "x")`, entities.Bool(true)},
		{`contains(#{a: 1}, "b")`, entities.Bool(false)},
		{`"haystack".contains("st")`, entities.Bool(true)},
		{`range(2, 5)`, entities.Arr(entities.Int(2), entities.Int(3), entities.Int(4))},
		{`range(5, 2)`, entities.Arr()},
		{`to_string(42)`, entities.Str("42")},
		{`parse_int(" 17 ")`, entities.Int(17)},
		{`parse_float("2.5")`, entities.Float(2.5)},
		{`trim("  x ")`, entities.Str("x")},
		{`split("a,b", ",")`, strs("a", "b")},
		{`join(["a", 1, true], "-")`, entities.Str("a-1-true")},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			testutil.AssertValue(t, tt.want, eval(t, eng, tt.src))
		})
	}
}

func TestCoreModule_Errors(t *testing.T) {
	eng := newEngine(t, WithModule(CoreModule()))

	assert.Equal(t, domainerrors.CodeTypeMismatch, evalErr(t, eng, `len(1)`).Code)
	assert.Equal(t, domainerrors.CodeTypeMismatch, evalErr(t, eng, `contains(#{}, 1)`).Code)

	re := evalErr(t, eng, `parse_int("x1")`)
	assert.Equal(t, domainerrors.CodeCapability, re.Code)
	assert.Contains(t, re.Error(), `invalid integer "x1"`)

	assert.Equal(t, domainerrors.CodeCapability, evalErr(t, eng, `range(0, 2000000)`).Code)
}

func TestCoreModule_PushCopiesValue(t *testing.T) {
	eng := newEngine(t, WithModule(CoreModule()))

	v := eval(t, eng, `
		let inner = [1];
		let outer = [];
		outer.push(inner);
		inner.push(2);
		[len(inner), len(outer[0])]
	`)
	testutil.AssertValue(t, entities.Arr(entities.Int(2), entities.Int(1)), v)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newIOEngine(t *testing.T, streams *Streams) func(string) entities.Value {
	t.Helper()
	eng := newEngine(t, WithModule(CoreModule(), streams.Module()), WithFeatures("io"))
	return func(src string) entities.Value { return eval(t, eng, src) }
}

func TestIOModule_LinesAndJSON(t *testing.T) {
	path := writeFile(t, "first\n{\"foo\": [1, 2]}\nrest\n")
	streams := NewStreams()
	t.Cleanup(func() { _ = streams.Close() })
	run := newIOEngine(t, streams)
	held, err := streams.Open(path)
	require.NoError(t, err)

	v := run(fmt.Sprintf(`
		let r = open(%q);
		let a = r.line();
		let d = r;
		let j = d.json();
		let tail = r.line();
		let rest = r.line();
		let end = r.line();
		[a, j.foo[1], tail, rest, end, r.offset]
	`, path))

	want := entities.Arr(
		entities.Str("first\n"),
		entities.Int(2),
		entities.Str("\n"),
		entities.Str("rest\n"),
		entities.Null,
		entities.Int(int64(len("first\n{\"foo\": [1, 2]}\nrest\n"))),
	)
	testutil.AssertValue(t, want, v)

	assert.Positive(t, streams.OpenHandles())
	require.NoError(t, streams.Close())
	assert.Zero(t, streams.OpenHandles())
	assert.True(t, held.Reader().Released())
}

func TestIOModule_DroppedHandlesAreCollected(t *testing.T) {
	path := writeFile(t, "n\n")
	streams := NewStreams()
	t.Cleanup(func() { _ = streams.Close() })
	run := newIOEngine(t, streams)

	v := run(fmt.Sprintf(`
		fn first(p) { let r = open(p); let c = r; c.line() }
		let i = 0;
		let last = null;
		while i < 500 { last = first(%q); i += 1; }
		last
	`, path))
	assert.Equal(t, entities.Str("n\n"), v)

	assert.Eventually(t, func() bool {
		runtime.GC()
		return streams.OpenHandles() == 0
	}, 5*time.Second, 10*time.Millisecond)

	streams.mu.Lock()
	streams.prune()
	tracked := len(streams.handles)
	streams.mu.Unlock()
	assert.Zero(t, tracked)
}

func TestIOModule_CloseDropsOneHandle(t *testing.T) {
	path := writeFile(t, "a\nb\n")
	streams := NewStreams()
	t.Cleanup(func() { _ = streams.Close() })
	eng := newEngine(t, WithModule(streams.Module()), WithFeatures("io"))

	v := eval(t, eng, fmt.Sprintf(`let r = open(%q); let r2 = r; r.close(); r2.line()`, path))
	assert.Equal(t, entities.Str("a\n"), v)

	re := evalErr(t, eng, fmt.Sprintf(`let r = open(%q); let r2 = r; r.close(); r.line()`, path))
	var ioErr *domainerrors.IOError
	require.ErrorAs(t, re, &ioErr)
	assert.ErrorIs(t, re, stream.ErrReleased)
}

func TestIOModule_Name(t *testing.T) {
	path := writeFile(t, "")
	streams := NewStreams(WithBaseDir(filepath.Dir(path)))
	t.Cleanup(func() { _ = streams.Close() })
	run := newIOEngine(t, streams)

	v := run(`let r = open("input.txt"); [r.name, r.line(), type_of(r)]`)
	testutil.AssertValue(t, entities.Arr(entities.Str(path), entities.Null, entities.Str(ReaderTypeName)), v)
}

func TestIOModule_SharedStdin(t *testing.T) {
	streams := NewStreams(WithStdin(strings.NewReader("a\nb\n")))
	t.Cleanup(func() { _ = streams.Close() })
	run := newIOEngine(t, streams)

	v := run(`let s = stdin(); let u = stdin(); [s.line(), u.line(), s.line()]`)
	testutil.AssertValue(t, entities.Arr(entities.Str("a\n"), entities.Str("b\n"), entities.Null), v)
}

func TestIOModule_MissingFile(t *testing.T) {
	streams := NewStreams()
	t.Cleanup(func() { _ = streams.Close() })
	eng := newEngine(t, WithModule(streams.Module()), WithFeatures("io"))

	v := eval(t, eng, `
		let msg = "";
		try { open("/definitely/not/here.txt"); } catch (e) { msg = e.type + ":" + e.code; }
		msg
	`)
	assert.Equal(t, entities.Str("io:open"), v)

	re := evalErr(t, eng, `open("/definitely/not/here.txt")`)
	var ioErr *domainerrors.IOError
	require.ErrorAs(t, re, &ioErr)
	assert.True(t, errors.Is(re, fs.ErrNotExist))
}

func TestIOModule_ReadAfterClose(t *testing.T) {
	path := writeFile(t, "x\n")
	streams := NewStreams()
	t.Cleanup(func() { _ = streams.Close() })
	eng := newEngine(t, WithModule(streams.Module()), WithFeatures("io"))

	re := evalErr(t, eng, fmt.Sprintf(`let r = open(%q); r.close(); r.line()`, path))
	var ioErr *domainerrors.IOError
	assert.ErrorAs(t, re, &ioErr)
}

func TestRecordModule(t *testing.T) {
	eng := newEngine(t, WithModule(RecordModule()), WithFeatures("record"))

	assert.Equal(t, entities.Int(6), eval(t, eng, `let r = create_abc(5); r.increment(); r.value`))
	assert.Equal(t, entities.Str("ABC"), eval(t, eng, `type_of(create_abc(1))`))

	v := eval(t, eng, `
		let a = create_abc(1);
		let b = a;
		b.increment();
		[a.value, b.value]
	`)
	testutil.AssertValue(t, entities.Arr(entities.Int(1), entities.Int(2)), v)

	re := evalErr(t, eng, `let r = create_abc(9223372036854775807); r.increment()`)
	assert.Equal(t, domainerrors.CodeCapability, re.Code)

	assert.Equal(t, domainerrors.CodePropertyNotFound, evalErr(t, eng, `create_abc(1).x`).Code)
	assert.Equal(t, domainerrors.CodeTypeMismatch, evalErr(t, eng, `let a = create_abc(1); a.value = 3;`).Code)
}

func TestCodecModule(t *testing.T) {
	eng := newEngine(t, WithModule(CodecModule()), WithFeatures("codec", "toml"))

	tests := []struct {
		name string
		src  string
		want entities.Value
	}{
		{"to_json sorts keys", `to_json(#{b: 1, a: [1, "x"]})`, entities.Str(`{"a":[1,"x"],"b":1}`)},
		{"json html not escaped", `codec::json::encode("<a>")`, entities.Str(`"<a>"`)},
		{"json pretty", `codec::json::pretty(#{a: 1})`, entities.Str("{\n  \"a\": 1\n}")},
		{"json decode numbers", `let m = codec::json::decode("{\"i\": 3, \"f\": 1.5}"); [m.i, m.f]`,
			entities.Arr(entities.Int(3), entities.Float(1.5))},
		{"yaml round trip", `let v = #{name: "x", list: [1, 2.5, true]}; codec::yaml::decode(codec::yaml::encode(v)) == v`,
			entities.Bool(true)},
		{"toml round trip", `let v = #{name: "x", port: 8080}; codec::toml::decode(codec::toml::encode(v)) == v`,
			entities.Bool(true)},
		{"toml local date", `codec::toml::decode("day = 2024-05-01").day`, entities.Str("2024-05-01")},
		{"yaml timestamp", `codec::yaml::decode("at: 2024-05-01T10:00:00Z").at`, entities.Str("2024-05-01T10:00:00Z")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertValue(t, tt.want, eval(t, eng, tt.src))
		})
	}
}

func TestCodecModule_DecodeErrors(t *testing.T) {
	eng := newEngine(t, WithModule(CodecModule()), WithFeatures("codec", "toml"))

	for _, tc := range []struct{ src, code string }{
		{`codec::json::decode("{bad")`, "json"},
		{`codec::json::decode("1 2")`, "json"},
		{`codec::yaml::decode("a: [1")`, "yaml"},
		{`codec::toml::decode("a = ")`, "toml"},
	} {
		t.Run(tc.src, func(t *testing.T) {
			v := eval(t, eng, `let got = ""; try { `+tc.src+`; } catch (e) { got = e.type + "/" + e.code; } got`)
			assert.Equal(t, entities.Str("decode/"+tc.code), v)
		})
	}

	assert.Equal(t, domainerrors.CodeTypeMismatch, evalErr(t, eng, `codec::toml::encode([1])`).Code)
}

func TestCodecModule_TOMLGroupGated(t *testing.T) {
	eng := newEngine(t, WithModule(CodecModule()), WithFeatures("codec"))

	assert.Equal(t, entities.Str("1"), eval(t, eng, `codec::json::encode(1)`))
	assertUndefined(t, eng, `codec::toml::encode(#{})`, "codec::toml::encode")
}

func TestCodecModule_GlobalOverrideLeavesGroupsInert(t *testing.T) {
	eng := newEngine(t, WithModule(CodecModule()), WithFeatures("codec"), WithModeOverride("codec", ModeGlobal))

	assert.Equal(t, entities.Str("[1]"), eval(t, eng, `to_json([1])`))
	assertUndefined(t, eng, `codec::json::encode(1)`, "codec::json::encode")
	assertUndefined(t, eng, `json::encode(1)`, "json::encode")
	assertUndefined(t, eng, `encode(1)`, "encode")
}

type fakeShell struct {
	got ports.ShellRequest
	res *ports.ShellResult
	err error
}

func (f *fakeShell) Run(_ context.Context, req ports.ShellRequest) (*ports.ShellResult, error) {
	f.got = req
	return f.res, f.err
}

func TestShellModule(t *testing.T) {
	sh := &fakeShell{res: &ports.ShellResult{Stdout: "hi\n", Stderr: "warn\n", ExitCode: 2, Truncated: true}}
	eng := newEngine(t, WithModule(ShellModule(sh)), WithFeatures("shell"))

	v := eval(t, eng, `let r = sh::run("echo hi"); [r.stdout, r.stderr, r.code, r.truncated]`)
	testutil.AssertValue(t, entities.Arr(entities.Str("hi\n"), entities.Str("warn\n"), entities.Int(2), entities.Bool(true)), v)
	assert.Equal(t, ports.ShellRequest{Script: "echo hi"}, sh.got)

	eval(t, eng, `sh::run_with("cat", #{stdin: "in", dir: "/tmp", env: #{A: 1, B: "x"}})`)
	assert.Equal(t, ports.ShellRequest{Script: "cat", Stdin: "in", Dir: "/tmp", Env: []string{"A=1", "B=x"}}, sh.got)

	assert.Equal(t, domainerrors.CodeTypeMismatch, evalErr(t, eng, `sh::run_with("x", #{stdin: 1})`).Code)

	sh.err = errors.New("parse shell script: bad")
	re := evalErr(t, eng, `sh::run("(")`)
	assert.Equal(t, domainerrors.CodeCapability, re.Code)
	assert.Contains(t, re.Error(), "sh::run: parse shell script: bad")
}

func TestShellModule_OffByDefault(t *testing.T) {
	eng := newEngine(t, WithModule(ShellModule(&fakeShell{})))
	assertUndefined(t, eng, `sh::run("true")`, "sh::run")
}

package shader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConditionalsDropsUndefinedBlock(t *testing.T) {
	p := NewPreProcessor(fstest.MapFS{}, nil)

	out, _, err := p.ProcessSource("main.wgsl", "#if FOO\nA\n#endif\nB")
	require.NoError(t, err)
	assert.Equal(t, "\n\n\nB", out)
	assert.Equal(t, "B", strings.TrimSpace(out))
}

func TestResolveConditionalsKeepsDefinedBlock(t *testing.T) {
	p := NewPreProcessor(fstest.MapFS{}, map[string]string{"FOO": "1"})

	out, _, err := p.ProcessSource("main.wgsl", "#if FOO\nA\n#endif\nB")
	require.NoError(t, err)
	assert.Equal(t, "\nA\n\nB", out)
}

func TestResolveConditionalsNegated(t *testing.T) {
	src := "#if !FOO\nfallback\n#endif"

	out, _, err := NewPreProcessor(fstest.MapFS{}, nil).ResolveConditionals(src, "main.wgsl")
	require.NoError(t, err)
	assert.Contains(t, out, "fallback")

	out, _, err = NewPreProcessor(fstest.MapFS{}, map[string]string{"FOO": ""}).ResolveConditionals(src, "main.wgsl")
	require.NoError(t, err)
	assert.NotContains(t, out, "fallback")
}

func TestResolveConditionalsNestedFourDeep(t *testing.T) {
	src := strings.Join([]string{
		"#if A",
		"a",
		"#if B",
		"b",
		"#if !C",
		"c",
		"#if D",
		"d",
		"#endif",
		"#endif",
		"#endif",
		"#endif",
		"tail",
	}, "\n")

	out, _, err := NewPreProcessor(fstest.MapFS{}, map[string]string{"A": "", "B": "", "D": ""}).ResolveConditionals(src, "nested.wgsl")
	require.NoError(t, err)
	assert.NotContains(t, out, "#")
	assert.Equal(t, []string{"a", "b", "c", "d", "tail"}, strings.Fields(out))
	assert.Len(t, strings.Split(out, "\n"), 13)

	out, _, err = NewPreProcessor(fstest.MapFS{}, map[string]string{"A": "", "B": ""}).ResolveConditionals(src, "nested.wgsl")
	require.NoError(t, err)
	assert.NotContains(t, out, "#")
	assert.Equal(t, []string{"a", "b", "c", "tail"}, strings.Fields(out))

	out, _, err = NewPreProcessor(fstest.MapFS{}, map[string]string{"B": "", "D": ""}).ResolveConditionals(src, "nested.wgsl")
	require.NoError(t, err)
	assert.Equal(t, []string{"tail"}, strings.Fields(out))
}

func TestDefineInsideAcceptedBlockEnablesLaterBlock(t *testing.T) {
	src := "#if A\n#define B\n#endif\n#if B\nb\n#endif"

	out, _, err := NewPreProcessor(fstest.MapFS{}, map[string]string{"A": "1"}).ResolveConditionals(src, "main.wgsl")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, strings.Fields(out))

	out, _, err = NewPreProcessor(fstest.MapFS{}, nil).ResolveConditionals(src, "main.wgsl")
	require.NoError(t, err)
	assert.Empty(t, strings.Fields(out))
}

func TestUndefRemovesPredefinedMacro(t *testing.T) {
	src := "#undef SHADOW_MAP\n#if SHADOW_MAP\nshadow\n#endif"

	out, _, err := NewPreProcessor(fstest.MapFS{}, map[string]string{"SHADOW_MAP": "1"}).ResolveConditionals(src, "main.wgsl")
	require.NoError(t, err)
	assert.NotContains(t, out, "shadow")
}

func TestResolveConditionalsReturnsValuedDefines(t *testing.T) {
	src := "#define LIGHTS 4\n#define FLAG\n#if NOPE\n#define HIDDEN 2\n#endif"

	_, defines, err := NewPreProcessor(fstest.MapFS{}, nil).ResolveConditionals(src, "main.wgsl")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LIGHTS": "4"}, defines)
}

func TestProcessDefineSubstitutesLiterally(t *testing.T) {
	src := "#define LIGHTS 4\nvar<uniform> lights: array<Light, LIGHTS>;\nconst MAX_LIGHTS_X = 1;"

	out, _, err := NewPreProcessor(fstest.MapFS{}, nil).ProcessSource("main.wgsl", src)
	require.NoError(t, err)
	assert.Contains(t, out, "array<Light, 4>")
	// substitution is not token aware
	assert.Contains(t, out, "MAX_4_X")
}

func TestProcessDefinePrefersLongestName(t *testing.T) {
	p := NewPreProcessor(fstest.MapFS{}, nil)

	out := p.ProcessDefine("SIZE SIZE_X", map[string]string{"SIZE": "1", "SIZE_X": "2"})
	assert.Equal(t, "1 2", out)
}

func TestUnmatchedEndifIsSyntaxError(t *testing.T) {
	_, _, err := NewPreProcessor(fstest.MapFS{}, nil).ProcessSource("broken.wgsl", "a\nb\n#endif")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.wgsl", perr.File)
	assert.Equal(t, 3, perr.Line)
	assert.Contains(t, err.Error(), "broken.wgsl:3:")
}

func TestUnterminatedIfReportsOpeningLine(t *testing.T) {
	_, _, err := NewPreProcessor(fstest.MapFS{}, nil).ProcessSource("broken.wgsl", "a\n#if FOO\nb\n#if BAR\nc\n#endif")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

func TestMalformedDirectiveIsSyntaxError(t *testing.T) {
	for _, src := range []string{"#if", "#if 9LIVES", "#include missing_quotes.wgsl", "#define", "#undef two words"} {
		_, _, err := NewPreProcessor(fstest.MapFS{}, nil).ProcessSource("bad.wgsl", src)
		assert.ErrorIs(t, err, ErrSyntax, src)
	}
}

func TestUnknownHashLinesPassThrough(t *testing.T) {
	out, _, err := NewPreProcessor(fstest.MapFS{}, nil).ProcessSource("main.wgsl", "#pragma once\nx")
	require.NoError(t, err)
	assert.Equal(t, "#pragma once\nx", out)
}

func TestIncludeResolvesRelativeToIncludingFile(t *testing.T) {
	fsys := fstest.MapFS{
		"shaders/main.wgsl":     {Data: []byte("#include \"common/a.wgsl\"\nmain")},
		"shaders/common/a.wgsl": {Data: []byte("#include \"b.wgsl\"\na")},
		"shaders/common/b.wgsl": {Data: []byte("b")},
	}
	p := NewPreProcessor(fsys, nil)

	out, deps, err := p.ProcessSource("shaders/main.wgsl", string(fsys["shaders/main.wgsl"].Data))
	require.NoError(t, err)
	assert.Equal(t, "\n\nb\na\nmain", out)
	assert.Equal(t, []string{"shaders/common/a.wgsl", "shaders/common/b.wgsl"}, deps)
}

func TestIncludeFallsBackToRoot(t *testing.T) {
	fsys := fstest.MapFS{
		"passes/forward.wgsl": {Data: []byte("#include \"common/camera.wgsl\"\nfwd")},
		"common/camera.wgsl":  {Data: []byte("camera")},
	}

	out, err := NewPreProcessor(fsys, nil).Process("passes/forward.wgsl")
	require.NoError(t, err)
	assert.Equal(t, []string{"camera", "fwd"}, strings.Fields(out))
}

func TestIncludeCycleIsGuardedPerChain(t *testing.T) {
	fsys := fstest.MapFS{
		"x.wgsl": {Data: []byte("#include \"y.wgsl\"\nx")},
		"y.wgsl": {Data: []byte("#include \"x.wgsl\"\ny")},
	}

	out, err := NewPreProcessor(fsys, nil).Process("x.wgsl")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, strings.Fields(out))
}

func TestSameHeaderThroughTwoPathsExpandsTwice(t *testing.T) {
	fsys := fstest.MapFS{
		"main.wgsl":   {Data: []byte("#include \"a.wgsl\"\n#include \"b.wgsl\"")},
		"a.wgsl":      {Data: []byte("#include \"common.wgsl\"\na")},
		"b.wgsl":      {Data: []byte("#include \"common.wgsl\"\nb")},
		"common.wgsl": {Data: []byte("common")},
	}

	out, deps, err := NewPreProcessor(fsys, nil).ProcessSource("main.wgsl", string(fsys["main.wgsl"].Data))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "common"))
	assert.Equal(t, []string{"a.wgsl", "common.wgsl", "b.wgsl"}, deps)
}

func TestProcessIncludeHonorsSeen(t *testing.T) {
	fsys := fstest.MapFS{
		"b.wgsl": {Data: []byte("b")},
	}
	p := NewPreProcessor(fsys, nil)

	out, err := p.ProcessInclude("#include \"b.wgsl\"\nx", "a.wgsl", map[string]bool{"b.wgsl": true})
	require.NoError(t, err)
	assert.Equal(t, "\nx", out)

	out, err = p.ProcessInclude("#include \"b.wgsl\"\nx", "a.wgsl", nil)
	require.NoError(t, err)
	assert.Equal(t, "\nb\nx", out)
}

func TestMissingIncludeReportsLine(t *testing.T) {
	fsys := fstest.MapFS{
		"main.wgsl": {Data: []byte("ok\n#include \"missing.wgsl\"\nafter")},
	}

	_, err := NewPreProcessor(fsys, nil).Process("main.wgsl")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInclude)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "main.wgsl", perr.File)
	assert.Equal(t, 2, perr.Line)
}

func TestMissingNestedIncludeReportsNestedFile(t *testing.T) {
	fsys := fstest.MapFS{
		"main.wgsl":  {Data: []byte("#include \"inner.wgsl\"")},
		"inner.wgsl": {Data: []byte("one\ntwo\n#include \"gone.wgsl\"")},
	}

	_, err := NewPreProcessor(fsys, nil).Process("main.wgsl")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "inner.wgsl", perr.File)
	assert.Equal(t, 3, perr.Line)
}

func TestProcessMissingRootFile(t *testing.T) {
	_, err := NewPreProcessor(fstest.MapFS{}, nil).Process("nope.wgsl")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestPreProcessorIsDeterministic(t *testing.T) {
	fsys := fstest.MapFS{
		"main.wgsl": {Data: []byte("#include \"lib.wgsl\"\n#if A\n#define N 3\n#endif\nlet n = N;")},
		"lib.wgsl":  {Data: []byte("#if !A\nfallback\n#endif")},
	}
	macros := map[string]string{"A": "1"}

	first, err := NewPreProcessor(fsys, macros).Process("main.wgsl")
	require.NoError(t, err)
	second, err := NewPreProcessor(fsys, macros).Process("main.wgsl")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "let n = 3;")
	assert.NotContains(t, first, "fallback")
}

func TestMacrosReturnsCopy(t *testing.T) {
	in := map[string]string{"A": "1"}
	p := NewPreProcessor(fstest.MapFS{}, in)
	in["B"] = "2"

	m := p.Macros()
	m["C"] = "3"
	assert.Equal(t, map[string]string{"A": "1"}, p.Macros())
}

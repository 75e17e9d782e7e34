// pre_processor.go implements the Oxy WGSL shader pre-processor. It expands #include directives
// from an fs.FS, resolves #if/#endif blocks against a macro set, applies #define/#undef and finally
// substitutes valued defines into the surviving text.
//
// Output is a pure function of the source, the predefined macros and the file system contents, which
// lets the Library cache one variant per path and macro set.
package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
)

// maxResolvePasses bounds the conditional fixed-point loop.
const maxResolvePasses = 32

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	fsys   fs.FS
	macros map[string]string
}

// PreProcessor turns raw WGSL carrying directives into plain WGSL for one macro set.
type PreProcessor interface {
	// Process reads path from the file system and runs every stage on it.
	//
	// Parameters:
	//   - file: the slash-separated path of the shader within the file system
	//
	// Returns:
	//   - string: the final WGSL source
	//   - error: a *Error for directive failures, or the read error for the root file
	Process(file string) (string, error)

	// ProcessSource runs every stage on source as if it had been read from file.
	//
	// Parameters:
	//   - file: the path used to resolve relative includes and to report errors
	//   - source: the raw shader text
	//
	// Returns:
	//   - string: the final WGSL source
	//   - []string: every file spliced in by #include, in first-seen order
	//   - error: a *Error for directive failures
	ProcessSource(file, source string) (string, []string, error)

	// ProcessInclude recursively expands #include directives. seen holds the includes already open in
	// the current chain; an include already in the chain expands to nothing. The same file may still
	// be expanded again through a different chain.
	//
	// Parameters:
	//   - source: the text to expand
	//   - file: the path of source, used to resolve relative includes
	//   - seen: the include chain, may be nil
	//
	// Returns:
	//   - string: the expanded text
	//   - error: a *Error wrapping ErrInclude with the line of the failing directive
	ProcessInclude(source, file string, seen map[string]bool) (string, error)

	// ResolveConditionals evaluates #if/#endif blocks and applies #define/#undef, repeating until a
	// pass leaves no directive behind. Directive lines and dropped lines become empty lines.
	//
	// Parameters:
	//   - source: include-expanded text
	//   - file: the path used when reporting errors
	//
	// Returns:
	//   - string: the resolved text
	//   - map[string]string: the valued defines declared in accepted blocks
	//   - error: a *Error wrapping ErrSyntax
	ResolveConditionals(source, file string) (string, map[string]string, error)

	// ProcessDefine substitutes every define into source as literal text. The substitution is not
	// token aware: a name found inside a longer identifier is replaced as well.
	//
	// Parameters:
	//   - source: resolved text
	//   - defines: name to replacement text
	//
	// Returns:
	//   - string: the substituted text
	ProcessDefine(source string, defines map[string]string) string

	// Macros returns a copy of the predefined macro set.
	//
	// Returns:
	//   - map[string]string: macro name to value
	Macros() map[string]string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a pre-processor reading includes from fsys with the given predefined macros.
// The macro map is copied.
//
// Parameters:
//   - fsys: the file system holding shader sources and includes
//   - macros: the predefined macros, typically config.Features.Macros()
//
// Returns:
//   - PreProcessor: the pre-processor
func NewPreProcessor(fsys fs.FS, macros map[string]string) PreProcessor {
	m := make(map[string]string, len(macros))
	for k, v := range macros {
		m[k] = v
	}
	return &preProcessor{fsys: fsys, macros: m}
}

func (p *preProcessor) Macros() map[string]string {
	m := make(map[string]string, len(p.macros))
	for k, v := range p.macros {
		m[k] = v
	}
	return m
}

func (p *preProcessor) Process(file string) (string, error) {
	data, err := fs.ReadFile(p.fsys, file)
	if err != nil {
		return "", fmt.Errorf("read shader %q: %w", file, err)
	}
	out, _, err := p.ProcessSource(file, string(data))
	return out, err
}

func (p *preProcessor) ProcessSource(file, source string) (string, []string, error) {
	var deps []string
	lines, err := p.expand(splitLines(file, source), map[string]bool{file: true}, &deps)
	if err != nil {
		return "", nil, err
	}
	lines, defines, err := p.resolve(lines)
	if err != nil {
		return "", nil, err
	}
	return p.ProcessDefine(joinLines(lines), defines), deps, nil
}

func (p *preProcessor) ProcessInclude(source, file string, seen map[string]bool) (string, error) {
	chain := make(map[string]bool, len(seen)+1)
	for k, v := range seen {
		chain[k] = v
	}
	chain[file] = true
	lines, err := p.expand(splitLines(file, source), chain, nil)
	if err != nil {
		return "", err
	}
	return joinLines(lines), nil
}

func (p *preProcessor) ResolveConditionals(source, file string) (string, map[string]string, error) {
	lines, defines, err := p.resolve(splitLines(file, source))
	if err != nil {
		return "", nil, err
	}
	return joinLines(lines), defines, nil
}

func (p *preProcessor) ProcessDefine(source string, defines map[string]string) string {
	if len(defines) == 0 {
		return source
	}
	// longest names first so a define never clobbers part of a longer one
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, defines[name])
	}
	return strings.NewReplacer(pairs...).Replace(source)
}

// expand splices every #include in lines. chain holds the files open in the current recursion;
// deps, when non-nil, collects every included file once.
func (p *preProcessor) expand(lines []sourceLine, chain map[string]bool, deps *[]string) ([]sourceLine, error) {
	out := make([]sourceLine, 0, len(lines))
	for _, l := range lines {
		d, err := parseDirective(l.text, l.at)
		if err != nil {
			return nil, err
		}
		if d == nil || d.Type != DirectiveInclude {
			out = append(out, l)
			continue
		}

		target := p.resolveInclude(l.at.file, d.Name)
		out = append(out, sourceLine{at: l.at})
		if chain[target] {
			continue
		}

		data, err := fs.ReadFile(p.fsys, target)
		if err != nil {
			return nil, &Error{
				File: l.at.file,
				Line: l.at.line,
				Msg:  fmt.Sprintf("cannot include %q: %v", d.Name, err),
				Err:  errors.Join(ErrInclude, err),
			}
		}
		if deps != nil && !slices.Contains(*deps, target) {
			*deps = append(*deps, target)
		}

		chain[target] = true
		nested, err := p.expand(splitLines(target, string(data)), chain, deps)
		delete(chain, target)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// resolveInclude resolves name against the directory of the including file, falling back to the
// file system root.
func (p *preProcessor) resolveInclude(from, name string) string {
	rel := path.Join(path.Dir(from), name)
	if _, err := fs.Stat(p.fsys, rel); err == nil {
		return rel
	}
	return path.Clean(name)
}

// resolve runs conditional passes until one makes no change.
func (p *preProcessor) resolve(lines []sourceLine) ([]sourceLine, map[string]string, error) {
	active := p.Macros()
	defines := make(map[string]string)
	for pass := 0; pass < maxResolvePasses; pass++ {
		next, changed, err := resolvePass(lines, active, defines)
		if err != nil {
			return nil, nil, err
		}
		lines = next
		if !changed {
			return lines, defines, nil
		}
	}
	return nil, nil, &Error{
		File: lines[0].at.file,
		Line: 1,
		Msg:  fmt.Sprintf("directives did not settle after %d passes", maxResolvePasses),
		Err:  ErrSyntax,
	}
}

// resolvePass walks lines once. Directives are blanked, lines inside rejected blocks are blanked,
// and defines in accepted blocks update active for the rest of the pass and for later passes.
func resolvePass(lines []sourceLine, active, defines map[string]string) ([]sourceLine, bool, error) {
	type block struct {
		at   origin
		keep bool
	}
	var stack []block
	keeping := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].keep
	}

	out := make([]sourceLine, len(lines))
	changed := false
	for i, l := range lines {
		d, err := parseDirective(l.text, l.at)
		if err != nil {
			return nil, false, err
		}
		if d == nil {
			out[i] = l
			if !keeping() && l.text != "" {
				out[i].text = ""
				changed = true
			}
			continue
		}

		out[i] = sourceLine{at: l.at}
		changed = true
		switch d.Type {
		case DirectiveIf:
			_, defined := active[d.Name]
			stack = append(stack, block{at: l.at, keep: keeping() && defined != d.Negated})
		case DirectiveEndif:
			if len(stack) == 0 {
				return nil, false, syntaxError(l.at, "#endif without matching #if")
			}
			stack = stack[:len(stack)-1]
		case DirectiveDefine:
			if keeping() {
				active[d.Name] = d.Value
				if d.Value != "" {
					defines[d.Name] = d.Value
				}
			}
		case DirectiveUndef:
			if keeping() {
				delete(active, d.Name)
				delete(defines, d.Name)
			}
		case DirectiveInclude:
			return nil, false, syntaxError(l.at, "#include %q survived include expansion", d.Name)
		}
	}
	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, false, syntaxError(open.at, "#if without matching #endif")
	}
	return out, changed, nil
}

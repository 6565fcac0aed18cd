package preproc

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Mode selects which preprocessor cc2 runs (spec.md §4.2).
type Mode int

const (
	// Lite is the default, self-hosting mode: object-like #define
	// and #undef only, every other directive passed through untouched.
	Lite Mode = iota
	// Full adds function-like macros (≤2 params), #include "path"
	// (depth ≤ 1), and #ifndef/#else/#endif.
	Full
)

// IncludeReader resolves an #include "path" to its file contents.
type IncludeReader func(path string) ([]byte, error)

// Size ceiling, per spec.md §6: source is capped at 256 KB, the
// preprocessed pre-buf at 384 KB.
const (
	MaxSourceBytes = 256 * 1024
	MaxPreBytes    = 384 * 1024
)

// Error reports a preprocessor-level failure. Malformed directives do
// not abort the run (spec.md §4.2/§7): they consume the line, preserve
// the newline, and bump Failures.
type Error struct {
	Msg  string
	Line int
}

func (e *Error) Error() string {
	return fmt.Sprintf("[cc2_pp] FAIL %s at line %d", e.Msg, e.Line)
}

type ifFrame struct {
	taken      bool // this branch's condition held
	elseSeen   bool
	parentSkip bool // an enclosing frame is itself skipped
}

// Preprocessor holds the shared macro table and per-run state.
type Preprocessor struct {
	Mode     Mode
	Macros   *Table
	Include  IncludeReader
	Failures int

	depth int // current #include nesting depth
}

// New creates a preprocessor in the given mode with a fresh macro
// table.
func New(mode Mode) *Preprocessor {
	return &Preprocessor{Mode: mode, Macros: NewTable()}
}

// Run preprocesses src and returns the pre-buf (spec.md §3) that the
// lexer consumes. Source over MaxSourceBytes, or a pre-buf over
// MaxPreBytes, fails rather than running the lexer on an oversized
// buffer (spec.md §6/§8).
func (p *Preprocessor) Run(src []byte) ([]byte, error) {
	if len(src) > MaxSourceBytes {
		p.Failures++
		return nil, &Error{Msg: fmt.Sprintf("source exceeds %d bytes", MaxSourceBytes)}
	}
	out, err := p.runDepth(src, 0)
	if err != nil {
		return out, err
	}
	if len(out) > MaxPreBytes {
		p.Failures++
		return out, &Error{Msg: fmt.Sprintf("preprocessed output exceeds %d bytes", MaxPreBytes)}
	}
	return out, nil
}

func (p *Preprocessor) runDepth(src []byte, depth int) ([]byte, error) {
	var out bytes.Buffer
	ifStack := make([]ifFrame, 0, MaxMacroDepth)

	skipped := func() bool {
		for _, f := range ifStack {
			if !f.taken || f.parentSkip {
				return true
			}
		}
		return false
	}

	scanner := bufio.NewScanner(src2reader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			directive, rest := splitDirective(trimmed[1:])
			switch {
			case directive == "define":
				if skipped() {
					out.WriteByte('\n')
					continue
				}
				if err := p.handleDefine(rest); err != nil {
					p.Failures++
				}
				out.WriteByte('\n')
				continue

			case directive == "undef":
				if !skipped() {
					p.Macros.Undef(strings.TrimSpace(rest))
				}
				out.WriteByte('\n')
				continue

			case p.Mode == Full && directive == "include":
				if skipped() {
					out.WriteByte('\n')
					continue
				}
				text, err := p.handleInclude(rest, depth)
				if err != nil {
					p.Failures++
					out.WriteByte('\n')
					continue
				}
				out.Write(text)
				out.WriteByte('\n')
				continue

			case p.Mode == Full && directive == "ifndef":
				name := strings.TrimSpace(rest)
				_, defined := p.Macros.Lookup(name)
				if len(ifStack) >= MaxMacroDepth {
					p.Failures++
					out.WriteByte('\n')
					continue
				}
				ifStack = append(ifStack, ifFrame{taken: !defined, parentSkip: skipped()})
				out.WriteByte('\n')
				continue

			case p.Mode == Full && directive == "else":
				if len(ifStack) == 0 {
					p.Failures++
					out.WriteByte('\n')
					continue
				}
				top := &ifStack[len(ifStack)-1]
				if !top.elseSeen {
					top.elseSeen = true
					top.taken = !top.taken
				}
				out.WriteByte('\n')
				continue

			case p.Mode == Full && directive == "endif":
				if len(ifStack) == 0 {
					p.Failures++
					out.WriteByte('\n')
					continue
				}
				ifStack = ifStack[:len(ifStack)-1]
				out.WriteByte('\n')
				continue

			default:
				// Lite mode ignores anything but #define/#undef;
				// full mode treats any other directive as malformed.
				if p.Mode == Full {
					p.Failures++
					out.WriteByte('\n')
					continue
				}
				out.WriteString(line)
				out.WriteByte('\n')
				continue
			}
		}

		if skipped() {
			out.WriteByte('\n')
			continue
		}

		out.WriteString(p.expandLine(line))
		out.WriteByte('\n')
	}

	if len(ifStack) > 0 {
		p.Failures++
	}

	return out.Bytes(), nil
}

func splitDirective(s string) (name, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && isIdentCont(s[i]) {
		i++
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

func (p *Preprocessor) handleDefine(rest string) error {
	name, rest2 := splitDirective(rest)
	if name == "" {
		return &Error{Msg: "#define missing name"}
	}
	rest2 = strings.TrimLeft(rest2, " \t")

	if p.Mode == Full && strings.HasPrefix(rest2, "(") {
		close := strings.IndexByte(rest2, ')')
		if close < 0 {
			return &Error{Msg: "unterminated macro parameter list"}
		}
		paramList := rest2[1:close]
		body := strings.TrimSpace(rest2[close+1:])
		var p1, p2 string
		params := splitArgs(paramList)
		if len(params) > 2 {
			return &Error{Msg: "too many macro parameters"}
		}
		if len(params) >= 1 {
			p1 = strings.TrimSpace(params[0])
		}
		if len(params) >= 2 {
			p2 = strings.TrimSpace(params[1])
		}
		return p.Macros.Define(Macro{
			Name:       name,
			Body:       encodeParams(body, p1, p2),
			IsFunction: true,
			ParamCount: len(params),
		})
	}

	return p.Macros.Define(Macro{Name: name, Body: strings.TrimSpace(rest2)})
}

// splitArgs splits a simple comma-separated argument list. Per
// spec.md §4.2 and §9, this does not balance nested parentheses —
// arguments must be simple, and that limitation is preserved rather
// than fixed.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (p *Preprocessor) handleInclude(rest string, depth int) ([]byte, error) {
	if depth >= 1 {
		return nil, &Error{Msg: "include depth exceeds 1"}
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return nil, &Error{Msg: "malformed include path"}
	}
	path := rest[1 : len(rest)-1]
	if p.Include == nil {
		return nil, &Error{Msg: "no include reader configured"}
	}
	contents, err := p.Include(path)
	if err != nil {
		return nil, err
	}
	child, _ := p.runDepth(contents, depth+1)
	return bytes.TrimRight(child, "\n"), nil
}

// expandLine substitutes macro invocations in line, copying string
// and character literals verbatim (spec.md §4.2).
func (p *Preprocessor) expandLine(line string) string {
	var out strings.Builder
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(line) && line[j] != c {
				if line[j] == '\\' && j+1 < len(line) {
					j++
				}
				j++
			}
			if j < len(line) {
				j++
			}
			out.WriteString(line[i:j])
			i = j

		case isIdentStart(c):
			j := i
			for j < len(line) && isIdentCont(line[j]) {
				j++
			}
			word := line[i:j]
			i = j
			out.WriteString(p.expandWord(line, word, &i))

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// expandWord expands a single identifier word at the current line
// position. For function-like macros it also consumes the following
// "(args)" from the line, advancing *i past it.
func (p *Preprocessor) expandWord(line, word string, i *int) string {
	m, ok := p.Macros.Lookup(word)
	if !ok {
		return word
	}
	if !m.IsFunction {
		return p.expandLine(m.Body) // chase macro-of-macro aliases
	}
	if p.Mode != Full {
		return word
	}

	rest := strings.TrimLeft(line[*i:], " \t")
	if rest == "" || rest[0] != '(' {
		return word
	}
	consumed := len(line[*i:]) - len(rest)
	close := strings.IndexByte(rest, ')')
	if close < 0 {
		return word
	}
	argText := rest[1:close]
	*i += consumed + close + 1

	args := splitArgs(argText)
	body := []byte(m.Body)
	var out []byte
	for _, b := range body {
		switch b {
		case Param1Sentinel:
			if len(args) >= 1 {
				out = append(out, strings.TrimSpace(args[0])...)
			}
		case Param2Sentinel:
			if len(args) >= 2 {
				out = append(out, strings.TrimSpace(args[1])...)
			}
		default:
			out = append(out, b)
		}
	}
	return p.expandLine(string(out))
}

func src2reader(src []byte) *bytes.Reader { return bytes.NewReader(src) }

package action

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrMalformed is returned for text that is not a valid action.
var ErrMalformed = errors.New("malformed action")

// Parse turns the action part of a model reply into an Action. It accepts
// finish(message=...), do(action=..., key=value...) and either form wrapped
// in <answer></answer>.
func Parse(text string) (Action, error) {
	raw := strings.TrimSpace(text)
	body := unwrap(raw)

	switch {
	case strings.HasPrefix(body, "finish"):
		return parseFinish(body, raw)
	case strings.HasPrefix(body, "do"):
		return parseDo(body, raw)
	}
	return Action{}, fmt.Errorf("%w: expected do(...) or finish(...)", ErrMalformed)
}

func unwrap(s string) string {
	if i := strings.Index(s, "<answer>"); i >= 0 {
		s = s[i+len("<answer>"):]
		if j := strings.Index(s, "</answer>"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`")
	return strings.TrimSpace(s)
}

// callArgs returns the text between the first "(" after name and the last ")".
func callArgs(body, name string) (string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(body, name))
	if !strings.HasPrefix(rest, "(") {
		return "", fmt.Errorf("%w: missing '(' after %s", ErrMalformed, name)
	}
	end := strings.LastIndex(rest, ")")
	if end < 0 {
		return "", fmt.Errorf("%w: missing ')'", ErrMalformed)
	}
	return rest[1:end], nil
}

// closingParen returns the index of the first unquoted ")" outside brackets
// in args, or -1.
func closingParen(args string) int {
	var quote byte
	depth := 0
	for i := 0; i < len(args); i++ {
		c := args[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == ')' && depth <= 0:
			return i
		}
	}
	return -1
}

func parseFinish(body, raw string) (Action, error) {
	args, err := callArgs(body, "finish")
	if err != nil {
		return Action{}, err
	}
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(args, "message") {
		return Action{}, fmt.Errorf("%w: finish without message", ErrMalformed)
	}
	v := strings.TrimSpace(strings.TrimPrefix(args, "message"))
	if !strings.HasPrefix(v, "=") {
		return Action{}, fmt.Errorf("%w: finish without message", ErrMalformed)
	}
	v = strings.TrimSpace(v[1:])

	msg := v
	if v != "" && (v[0] == '"' || v[0] == '\'') {
		p := &argParser{s: v}
		if s, err := p.quoted(); err == nil && strings.TrimSpace(p.s[p.i:]) == "" {
			msg = s
		}
	}
	a := Finish(msg)
	a.Raw = raw
	return a, nil
}

func parseDo(body, raw string) (Action, error) {
	argText, err := callArgs(body, "do")
	if err != nil {
		return Action{}, err
	}
	// Text after the closing paren of do(...) is not part of the call.
	if end := closingParen(argText); end >= 0 {
		argText = argText[:end]
	}
	p := &argParser{s: argText}
	args, err := p.args()
	if err != nil {
		return Action{}, err
	}

	nameVal, ok := args["action"]
	if !ok || nameVal.str() == "" {
		return Action{}, fmt.Errorf("%w: missing action name", ErrMalformed)
	}
	name := nameVal.str()
	a := Action{Name: name, Meta: MetaDo, Raw: raw}

	switch name {
	case "Launch":
		a.Kind = KindLaunch
		a.App, err = requireString(args, "app")
	case "Tap":
		a.Kind = KindTap
		a.Element, err = requirePoint(args, "element")
	case "Long Press":
		a.Kind = KindLongPress
		a.Element, err = requirePoint(args, "element")
		if err == nil {
			a.DurationMs, err = optionalInt(args, "duration_ms")
		}
	case "Double Tap":
		a.Kind = KindDoubleTap
		a.Element, err = requirePoint(args, "element")
	case "Type", "Type_Name":
		a.Kind = KindType
		a.Text, err = requireString(args, "text")
	case "Swipe":
		a.Kind = KindSwipe
		if a.Start, err = requirePoint(args, "start"); err == nil {
			if a.End, err = requirePoint(args, "end"); err == nil {
				a.DurationMs, err = optionalInt(args, "duration_ms")
			}
		}
	case "Back":
		a.Kind = KindBack
	case "Home":
		a.Kind = KindHome
	case "Wait":
		a.Kind = KindWait
		a.Wait, err = waitDuration(args)
	case "Take_over":
		a.Kind = KindTakeOver
		a.Message, err = requireString(args, "message")
	default:
		a.Kind = KindOperation
		if m, ok := args["message"]; ok {
			a.Message = m.str()
		}
	}
	if err != nil {
		return Action{}, err
	}
	return a, nil
}

func requireString(args map[string]value, key string) (string, error) {
	v, ok := args[key]
	if !ok || v.isList {
		return "", fmt.Errorf("%w: %s is required", ErrMalformed, key)
	}
	return v.str(), nil
}

func requirePoint(args map[string]value, key string) (Coordinates, error) {
	v, ok := args[key]
	if !ok || !v.isList || len(v.list) != 2 || !v.list[0].isNum || !v.list[1].isNum {
		return Coordinates{}, fmt.Errorf("%w: %s must be [x, y]", ErrMalformed, key)
	}
	x := int(math.Round(v.list[0].num))
	y := int(math.Round(v.list[1].num))
	if x < 0 || x > CoordMax || y < 0 || y > CoordMax {
		return Coordinates{}, fmt.Errorf("%w: %s [%d, %d] outside 0..%d", ErrMalformed, key, x, y, CoordMax)
	}
	return Coordinates{X: x, Y: y}, nil
}

func optionalInt(args map[string]value, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, nil
	}
	if !v.isNum || v.num < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative number", ErrMalformed, key)
	}
	return int(math.Round(v.num)), nil
}

// waitDuration accepts duration=2, duration="2 seconds" or duration="2s".
func waitDuration(args map[string]value) (time.Duration, error) {
	v, ok := args["duration"]
	if !ok {
		return 0, fmt.Errorf("%w: duration is required", ErrMalformed)
	}
	secs := v.num
	if !v.isNum {
		s := strings.TrimSpace(v.str())
		s = strings.TrimSuffix(s, "seconds")
		s = strings.TrimSuffix(s, "second")
		s = strings.TrimSuffix(s, "s")
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad duration %q", ErrMalformed, v.str())
		}
		secs = f
	}
	if secs < 0 {
		return 0, fmt.Errorf("%w: negative duration", ErrMalformed)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// value is a parsed argument: a string, a number or a list.
type value struct {
	s      string
	num    float64
	isNum  bool
	list   []value
	isList bool
}

func (v value) str() string {
	if v.isNum && v.s == "" {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.s
}

type argParser struct {
	s string
	i int
}

func (p *argParser) eof() bool {
	return p.i >= len(p.s)
}

func (p *argParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.s[p.i])) {
		p.i++
	}
}

func (p *argParser) args() (map[string]value, error) {
	out := make(map[string]value)
	for {
		p.skipSpace()
		if p.eof() {
			return out, nil
		}
		key := p.ident()
		if key == "" {
			return nil, fmt.Errorf("%w: expected argument name at %d", ErrMalformed, p.i)
		}
		p.skipSpace()
		if p.eof() || p.s[p.i] != '=' {
			return nil, fmt.Errorf("%w: expected '=' after %s", ErrMalformed, key)
		}
		p.i++
		p.skipSpace()
		v, err := p.value(false)
		if err != nil {
			return nil, err
		}
		out[key] = v
		p.skipSpace()
		if p.eof() {
			return out, nil
		}
		if p.s[p.i] != ',' {
			return nil, fmt.Errorf("%w: expected ',' at %d", ErrMalformed, p.i)
		}
		p.i++
	}
}

func (p *argParser) ident() string {
	start := p.i
	for !p.eof() {
		c := p.s[p.i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			p.i++
			continue
		}
		break
	}
	return p.s[start:p.i]
}

func (p *argParser) value(inList bool) (value, error) {
	if p.eof() {
		return value{}, fmt.Errorf("%w: missing value", ErrMalformed)
	}
	switch p.s[p.i] {
	case '"', '\'':
		s, err := p.quoted()
		return value{s: s}, err
	case '[':
		return p.listValue()
	}
	return p.bare(inList), nil
}

func (p *argParser) quoted() (string, error) {
	q := p.s[p.i]
	p.i++
	var b strings.Builder
	for !p.eof() {
		c := p.s[p.i]
		p.i++
		switch {
		case c == q:
			return b.String(), nil
		case c == '\\' && !p.eof():
			e := p.s[p.i]
			p.i++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("%w: unterminated string", ErrMalformed)
}

func (p *argParser) listValue() (value, error) {
	p.i++ // [
	v := value{isList: true}
	for {
		p.skipSpace()
		if p.eof() {
			return value{}, fmt.Errorf("%w: unterminated list", ErrMalformed)
		}
		if p.s[p.i] == ']' {
			p.i++
			return v, nil
		}
		item, err := p.value(true)
		if err != nil {
			return value{}, err
		}
		v.list = append(v.list, item)
		p.skipSpace()
		if !p.eof() && p.s[p.i] == ',' {
			p.i++
		}
	}
}

// bare reads an unquoted token up to the next separator.
func (p *argParser) bare(inList bool) value {
	start := p.i
	for !p.eof() {
		c := p.s[p.i]
		if c == ',' || inList && c == ']' {
			break
		}
		p.i++
	}
	tok := strings.TrimSpace(p.s[start:p.i])
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return value{num: f, isNum: true}
	}
	return value{s: tok}
}

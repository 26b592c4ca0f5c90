// Package selection names instrumentation targets: a class with a source line
// range, or a class with a method and signature. Selections travel as a short
// comma delimited token.
package selection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LinesPrefix marks a token defined via source lines.
const LinesPrefix = "[lines]"

// Placeholders used by the "all spawned threads" selection.
const (
	NoClassName       = "*FAKE_CLASS_1*"
	NoMethodName      = "*FAKE_METHOD_1*"
	NoMethodSignature = "*FAKE_SIGNATURE_1*"
)

var ErrInvalidSelection = errors.New("invalid selection")

type Selection struct {
	ClassName       string
	MethodName      string
	MethodSignature string
	StartLine       int
	EndLine         int
	MarkerMethod    bool
}

// Lines selects the source lines [start, end] of a class.
func Lines(className string, start, end int) Selection {
	return Selection{ClassName: className, StartLine: start, EndLine: end}
}

// Method selects a method by name and signature. Empty name or signature act
// as "any".
func Method(className, methodName, signature string) Selection {
	return Selection{
		ClassName:       className,
		MethodName:      methodName,
		MethodSignature: signature,
		StartLine:       -1,
		EndLine:         -1,
	}
}

// AllSpawnedThreads instruments the run() method of every thread started after
// instrumentation is armed, but not main().
func AllSpawnedThreads() Selection {
	return Selection{
		ClassName:       NoClassName,
		MethodName:      NoMethodName,
		MethodSignature: NoMethodSignature,
	}
}

func (s Selection) DefinedViaSourceLines() bool {
	return s.StartLine > 0
}

func (s Selection) DefinedViaMethodName() bool {
	return s.StartLine == -1
}

// Flattened renders class, method and signature as one dotted name. Wildcard
// suffixes are dropped.
func (s Selection) Flattened() string {
	if s.ClassName == "" {
		return ""
	}

	wildcard := strings.HasSuffix(s.ClassName, "*")
	class := strings.ReplaceAll(s.ClassName, "$**", "")
	class = strings.ReplaceAll(class, ".**", "")
	class = strings.ReplaceAll(class, ".*", "")

	var b strings.Builder
	b.WriteString(class)
	if !wildcard && s.MethodName != "" && !strings.HasSuffix(s.MethodName, "*") {
		b.WriteByte('.')
		b.WriteString(s.MethodName)
	}
	if !wildcard && s.MethodSignature != "" && !strings.HasSuffix(s.MethodSignature, "*") {
		b.WriteString(s.MethodSignature)
	}
	return b.String()
}

// Contains reports whether other falls inside s: the same class with a
// narrower line range, or a name under s's flattened name.
func (s Selection) Contains(other Selection) bool {
	if s.DefinedViaSourceLines() {
		return s.ClassName == other.ClassName &&
			s.StartLine >= other.StartLine && s.EndLine <= other.EndLine
	}

	norm := func(v string) string {
		return strings.NewReplacer(".", `\`, "$", `\`).Replace(v)
	}
	return strings.HasPrefix(norm(other.Flattened()), norm(s.Flattened())+`\`)
}

// Equal compares two selections ignoring the marker flag and "$**" suffixes.
func (s Selection) Equal(other Selection) bool {
	if s.StartLine != other.StartLine || s.EndLine != other.EndLine {
		return false
	}
	if strings.ReplaceAll(s.ClassName, "$**", "") != strings.ReplaceAll(other.ClassName, "$**", "") {
		return false
	}
	return s.MethodName == other.MethodName && s.MethodSignature == other.MethodSignature
}

func (s Selection) String() string {
	if s.DefinedViaSourceLines() {
		return fmt.Sprintf("%s:%d-%d", s.ClassName, s.StartLine, s.EndLine)
	}

	out := s.ClassName
	if s.MethodName != "" {
		out += "." + s.MethodName + s.MethodSignature
	}
	if s.MarkerMethod {
		out += " [marker]"
	}
	return out
}

// Encode serializes s as "[lines]Class,start,end" or "Class[,method[,sig]]".
func Encode(s Selection) string {
	if s.DefinedViaSourceLines() {
		return LinesPrefix + s.ClassName + "," + strconv.Itoa(s.StartLine) + "," + strconv.Itoa(s.EndLine)
	}

	switch {
	case s.MethodName == "" && s.MethodSignature == "":
		return s.ClassName
	case s.MethodSignature == "":
		return s.ClassName + "," + s.MethodName
	default:
		return s.ClassName + "," + s.MethodName + "," + s.MethodSignature
	}
}

// Decode parses a token produced by Encode.
func Decode(token string) (Selection, error) {
	if token == "" {
		return Selection{}, fmt.Errorf("%w: empty token", ErrInvalidSelection)
	}

	if rest, ok := strings.CutPrefix(token, LinesPrefix); ok {
		parts := strings.Split(rest, ",")
		if len(parts) != 3 {
			return Selection{}, fmt.Errorf("%w: %q needs class,start,end", ErrInvalidSelection, token)
		}
		start, err := strconv.Atoi(parts[1])
		if err != nil {
			return Selection{}, fmt.Errorf("%w: start line %q", ErrInvalidSelection, parts[1])
		}
		end, err := strconv.Atoi(parts[2])
		if err != nil {
			return Selection{}, fmt.Errorf("%w: end line %q", ErrInvalidSelection, parts[2])
		}
		return Lines(parts[0], start, end), nil
	}

	parts := strings.SplitN(token, ",", 3)
	var class, method, sig string
	class = parts[0]
	if len(parts) > 1 {
		method = parts[1]
	}
	if len(parts) > 2 {
		sig = parts[2]
	}
	return Method(class, method, sig), nil
}

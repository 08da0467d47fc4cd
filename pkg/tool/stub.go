package tool

import (
	"fmt"
	"sort"
	"strings"
)

// maxStubExamples caps how many few-shot examples a docstring carries.
const maxStubExamples = 3

// maxSchemaDepth bounds how deep return-schema objects are expanded in
// docstrings. Deeper levels render as their bare type name.
const maxSchemaDepth = 2

// StubRenderer turns registered tools into callable stubs for generated
// code. Free functions render one per tool; tools sharing a TargetClass
// render as methods on a synthesized class plus a ready instance.
type StubRenderer struct {
	registry *Registry
}

func NewStubRenderer(registry *Registry) *StubRenderer {
	return &StubRenderer{registry: registry}
}

// Render produces the full stub block for lang: class-grouped tools first,
// then free functions, in registration order.
func (sr *StubRenderer) Render(lang Language) (string, error) {
	switch lang {
	case LangPython, LangJavaScript:
	default:
		return "", fmt.Errorf("unsupported stub language: %s", lang)
	}

	records := sr.registry.ForLanguage(lang)

	classes := make(map[string][]*Record)
	var classOrder []string
	var free []*Record
	for _, rec := range records {
		if cls := rec.Definition.TargetClass; cls != "" {
			if _, ok := classes[cls]; !ok {
				classOrder = append(classOrder, cls)
			}
			classes[cls] = append(classes[cls], rec)
		} else {
			free = append(free, rec)
		}
	}

	var blocks []string
	for _, cls := range classOrder {
		blocks = append(blocks, sr.renderClass(lang, cls, classes[cls]))
	}
	for _, rec := range free {
		blocks = append(blocks, sr.renderFunction(lang, rec, ""))
	}
	return strings.Join(blocks, "\n\n"), nil
}

// RenderTool produces the stub for a single tool.
func (sr *StubRenderer) RenderTool(lang Language, name string) (string, error) {
	rec, err := sr.registry.Tool(name)
	if err != nil {
		return "", err
	}
	if !rec.Definition.SupportsLanguage(lang) {
		return "", fmt.Errorf("tool '%s' is not available for %s", name, lang)
	}
	return sr.renderFunction(lang, rec, ""), nil
}

func (sr *StubRenderer) renderClass(lang Language, cls string, recs []*Record) string {
	var b strings.Builder
	switch lang {
	case LangPython:
		fmt.Fprintf(&b, "class %s:\n", cls)
		for i, rec := range recs {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(indent(sr.renderFunction(lang, rec, "self"), "    "))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%s = %s()", instanceName(cls), cls)
	case LangJavaScript:
		fmt.Fprintf(&b, "class %s {\n", cls)
		for i, rec := range recs {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(indent(sr.renderMethodJS(rec), "  "))
			b.WriteString("\n")
		}
		b.WriteString("}\n")
		fmt.Fprintf(&b, "\nconst %s = new %s();", instanceName(cls), cls)
	}
	return b.String()
}

// instanceName derives a lower-snake instance identifier from a class name.
func instanceName(cls string) string {
	var b strings.Builder
	for i, r := range cls {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// orderedParams returns parameters required-first, preserving declaration
// order within each group.
func orderedParams(d *Definition) []*Parameter {
	out := make([]*Parameter, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Required {
			out = append(out, p)
		}
	}
	for _, p := range d.Parameters {
		if !p.Required {
			out = append(out, p)
		}
	}
	return out
}

func (sr *StubRenderer) renderFunction(lang Language, rec *Record, receiver string) string {
	switch lang {
	case LangPython:
		return sr.renderFunctionPy(rec, receiver)
	case LangJavaScript:
		return sr.renderFunctionJS(rec)
	}
	return ""
}

func (sr *StubRenderer) renderFunctionPy(rec *Record, receiver string) string {
	d := rec.Definition
	params := orderedParams(d)

	args := make([]string, 0, len(params)+1)
	if receiver != "" {
		args = append(args, receiver)
	}
	for _, p := range params {
		arg := p.Name
		if hint := pyTypeHint(p.Type); hint != "" {
			arg += ": " + hint
		}
		if !p.Required {
			arg += " = " + pyLiteral(p.Default)
		}
		args = append(args, arg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "def %s(%s):\n", d.Name, strings.Join(args, ", "))
	b.WriteString(indent(sr.docstring(d, LangPython), "    "))
	b.WriteString("\n    ...")
	return b.String()
}

func (sr *StubRenderer) renderFunctionJS(rec *Record) string {
	d := rec.Definition
	params := orderedParams(d)

	args := make([]string, 0, len(params))
	for _, p := range params {
		if p.Required {
			args = append(args, p.Name)
		} else {
			args = append(args, fmt.Sprintf("%s = %s", p.Name, jsLiteral(p.Default)))
		}
	}

	var b strings.Builder
	b.WriteString(sr.jsdoc(d))
	fmt.Fprintf(&b, "function %s(%s) {}", d.Name, strings.Join(args, ", "))
	return b.String()
}

func (sr *StubRenderer) renderMethodJS(rec *Record) string {
	d := rec.Definition
	params := orderedParams(d)

	args := make([]string, 0, len(params))
	for _, p := range params {
		if p.Required {
			args = append(args, p.Name)
		} else {
			args = append(args, fmt.Sprintf("%s = %s", p.Name, jsLiteral(p.Default)))
		}
	}

	var b strings.Builder
	b.WriteString(sr.jsdoc(d))
	fmt.Fprintf(&b, "%s(%s) {}", d.Name, strings.Join(args, ", "))
	return b.String()
}

func (sr *StubRenderer) docstring(d *Definition, lang Language) string {
	var b strings.Builder
	b.WriteString(`"""`)
	b.WriteString(d.Description)
	b.WriteString("\n")

	if len(d.Parameters) > 0 {
		b.WriteString("\nArgs:\n")
		for _, p := range orderedParams(d) {
			line := fmt.Sprintf("    %s (%s)", p.Name, paramTypeName(p.Type, lang))
			if !p.Required {
				line += ", optional"
			}
			if p.Description != "" {
				line += ": " + p.Description
			}
			if len(p.Enum) > 0 {
				line += fmt.Sprintf(" One of: %s.", enumList(p.Enum))
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\nReturns:\n")
	b.WriteString(indent(sr.returnsSection(d, lang), "    "))
	b.WriteString("\n")

	if examples := d.Examples; len(examples) > 0 {
		if len(examples) > maxStubExamples {
			examples = examples[:maxStubExamples]
		}
		b.WriteString("\nExamples:\n")
		for _, ex := range examples {
			if ex.Description != "" {
				b.WriteString("    # " + ex.Description + "\n")
			}
			b.WriteString("    >>> " + ex.Call + "\n")
			if ex.Result != "" {
				b.WriteString("    " + ex.Result + "\n")
			}
		}
	}

	b.WriteString(`"""`)
	return b.String()
}

func (sr *StubRenderer) jsdoc(d *Definition) string {
	var b strings.Builder
	b.WriteString("/**\n")
	fmt.Fprintf(&b, " * %s\n", d.Description)
	for _, p := range orderedParams(d) {
		name := p.Name
		if !p.Required {
			name = "[" + name + "]"
		}
		desc := p.Description
		if len(p.Enum) > 0 {
			if desc != "" {
				desc += " "
			}
			desc += fmt.Sprintf("One of: %s.", enumList(p.Enum))
		}
		fmt.Fprintf(&b, " * @param {%s} %s %s\n", paramTypeName(p.Type, LangJavaScript), name, desc)
	}
	fmt.Fprintf(&b, " * @returns %s\n", strings.ReplaceAll(sr.returnsSection(d, LangJavaScript), "\n", "\n *   "))
	b.WriteString(" */\n")
	return b.String()
}

// returnsSection describes what the tool returns, preferring the effective
// (declared plus observed) schema over the declared description alone.
func (sr *StubRenderer) returnsSection(d *Definition, lang Language) string {
	schema, ok := sr.registry.ReturnSchema(d.Name)
	if !ok || schema == nil || schema.Success == nil {
		if d.Returns != nil && d.Returns.Description != "" {
			return d.Returns.Description
		}
		return "dict with the tool result"
	}

	var b strings.Builder
	if schema.Description != "" {
		b.WriteString(schema.Description)
		b.WriteString("\n")
	}
	b.WriteString(describeShape(schema.Success, lang, 0))
	if schema.HasSource(SourceObserved) && !schema.HasSource(SourceDeclared) {
		fmt.Fprintf(&b, "\n(inferred from %d observed call(s))", schema.Observations)
	}
	return b.String()
}

// describeShape renders a shape as indented docstring lines, expanding
// object fields up to maxSchemaDepth levels.
func describeShape(s *Shape, lang Language, depth int) string {
	if s == nil {
		return paramTypeName(TypeUnknown, lang)
	}
	switch s.Kind {
	case KindPrimitive:
		return paramTypeName(s.Primitive, lang)
	case KindArray:
		return "list of " + describeShape(s.Item, lang, depth)
	case KindObject:
		if depth >= maxSchemaDepth || len(s.Fields) == 0 {
			return paramTypeName(TypeObject, lang)
		}
		var b strings.Builder
		b.WriteString(paramTypeName(TypeObject, lang) + " with:")
		for _, f := range s.Fields {
			line := fmt.Sprintf("\n%s- %s (%s)", strings.Repeat("  ", depth+1), f.Name, describeShape(f.Shape, lang, depth+1))
			if f.Shape != nil && f.Shape.Optional {
				line += ", optional"
			}
			b.WriteString(line)
		}
		return b.String()
	}
	return paramTypeName(TypeUnknown, lang)
}

func paramTypeName(t ParamType, lang Language) string {
	if lang == LangPython {
		switch t {
		case TypeString:
			return "str"
		case TypeInteger:
			return "int"
		case TypeNumber:
			return "float"
		case TypeBoolean:
			return "bool"
		case TypeObject:
			return "dict"
		case TypeArray:
			return "list"
		case TypeNull:
			return "None"
		}
		return "Any"
	}
	switch t {
	case TypeString:
		return "string"
	case TypeInteger, TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeObject:
		return "object"
	case TypeArray:
		return "Array"
	case TypeNull:
		return "null"
	}
	return "*"
}

func pyTypeHint(t ParamType) string {
	switch t {
	case TypeString:
		return "str"
	case TypeInteger:
		return "int"
	case TypeNumber:
		return "float"
	case TypeBoolean:
		return "bool"
	case TypeObject:
		return "dict"
	case TypeArray:
		return "list"
	}
	return ""
}

func pyLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func jsLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("%t", val)
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func enumList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// StructuredPrompt renders a category-grouped plain-text tool overview for
// inclusion in the system prompt, independent of any stub language.
func (sr *StubRenderer) StructuredPrompt() string {
	byCategory := make(map[Category][]*Record)
	for _, rec := range sr.registry.All() {
		cat := rec.Definition.Category
		if cat == "" {
			cat = CategoryGeneral
		}
		byCategory[cat] = append(byCategory[cat], rec)
	}

	cats := make([]Category, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	var b strings.Builder
	for i, cat := range cats {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s tools\n", cat)
		for _, rec := range byCategory[cat] {
			d := rec.Definition
			name := d.Name
			if d.DisplayName != "" {
				name = fmt.Sprintf("%s (%s)", d.DisplayName, d.Name)
			}
			fmt.Fprintf(&b, "- %s: %s\n", name, d.Description)
		}
	}
	return b.String()
}

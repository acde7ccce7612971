package config

import (
	"strconv"
	"strings"
)

// Format renders the set in canonical braced form, in declaration order:
// daemons, processes, visis, then tunables. Parsing the output yields a set
// equal to c.
func (c *ConfigSet) Format() string {
	var b strings.Builder
	for _, name := range c.daemonOrder {
		d := c.daemons[name]
		openBlock(&b, "daemon", d.Name)
		writeClause(&b, "command", quote(d.Command))
		writeClause(&b, "host", quote(d.Host))
		writeClause(&b, "flavor", d.Flavor.String())
		b.WriteString("}\n")
	}
	for _, name := range c.processOrder {
		p := c.processes[name]
		openBlock(&b, "process", p.Name)
		writeClause(&b, "command", quote(p.Command))
		writeClause(&b, "args", formatList(p.Args))
		writeClause(&b, "host", quote(p.Host))
		writeClause(&b, "daemon", quote(p.Daemon))
		writeClause(&b, "flavor", p.Flavor.String())
		b.WriteString("}\n")
	}
	for _, name := range c.visiOrder {
		v := c.visis[name]
		openBlock(&b, "visi", v.Name)
		writeClause(&b, "command", quote(v.Command))
		writeClause(&b, "args", formatList(v.Args))
		writeClause(&b, "host", quote(v.Host))
		b.WriteString("}\n")
	}
	for _, name := range c.tunableOrder {
		t := c.tunables[name]
		b.WriteString("tunable ")
		b.WriteString(quote(t.Name))
		b.WriteString(" = ")
		b.WriteString(strconv.FormatFloat(t.Value, 'g', -1, 64))
		b.WriteString(";\n")
	}
	return b.String()
}

func openBlock(b *strings.Builder, kind, name string) {
	b.WriteString(kind)
	b.WriteByte(' ')
	b.WriteString(quote(name))
	b.WriteString(" {\n")
}

func writeClause(b *strings.Builder, field, value string) {
	b.WriteString("    ")
	b.WriteString(field)
	b.WriteString(" = ")
	b.WriteString(value)
	b.WriteString(";\n")
}

func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// quote escapes only what the lexer unescapes.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Generator renders a Config as a Lua config file.
type Generator struct {
	indent string // Indentation string (default: two spaces)
	now    func() time.Time
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
		now:    time.Now,
	}
}

// Generate generates Lua code from a Config struct. Fields equal to their
// default are written commented out so the file documents every knob.
// The output parses back to an equal Config.
func (g *Generator) Generate(config *Config) (string, error) {
	if config == nil {
		return "", fmt.Errorf("config is nil")
	}
	def := Default()
	var buf bytes.Buffer

	buf.WriteString("-- skia-canvas native binding configuration\n")
	buf.WriteString("-- Generated: ")
	buf.WriteString(g.now().UTC().Format(time.RFC3339))
	buf.WriteString("\n--\n")
	buf.WriteString("-- The read-only `platform` table describes this host, e.g.\n")
	buf.WriteString("--   allow_arm32 = platform.is_linux and platform.arch == \"arm\",\n\n")

	buf.WriteString(luaGlobalSkia)
	buf.WriteString(" = {\n")

	g.writeString(&buf, luaFieldBinaryPath, config.NodeBinaryPath, def.NodeBinaryPath)
	g.writeField(&buf, luaFieldTimeout, fmt.Sprintf("%d", config.Timeout), config.Timeout == def.Timeout)
	g.writeField(&buf, luaFieldRetries, fmt.Sprintf("%d", config.DownloadRetries), config.DownloadRetries == def.DownloadRetries)
	g.writeString(&buf, luaFieldRegistry, config.Registry, def.Registry)
	g.writeString(&buf, luaFieldPackage, config.Package, def.Package)
	g.writeString(&buf, luaFieldVersion, config.Version, def.Version)
	g.writeField(&buf, luaFieldLegacyLayout, fmt.Sprintf("%t", config.LegacyLayout), !config.LegacyLayout)
	g.writeField(&buf, luaFieldAllowARM32, fmt.Sprintf("%t", config.AllowARM32), !config.AllowARM32)

	if config.FontsPath != "" || len(config.FontAliases) > 0 {
		buf.WriteString("\n")
		if config.FontsPath != "" {
			g.writeField(&buf, luaFieldFontsPath, g.quoteLuaString(config.FontsPath), false)
		}
		if len(config.FontAliases) > 0 {
			g.writeFontAliases(&buf, config.FontAliases)
		}
	}

	if v := config.Verify; len(v.Checksums) > 0 || v.ChecksumsFile != "" || v.Signature || v.Keyring != "" {
		buf.WriteString("\n")
		g.writeVerify(&buf, v)
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

// writeString writes a string field, commented out when it equals def.
func (g *Generator) writeString(buf *bytes.Buffer, name, value, def string) {
	g.writeField(buf, name, g.quoteLuaString(value), value == def)
}

func (g *Generator) writeField(buf *bytes.Buffer, name, literal string, commented bool) {
	buf.WriteString(g.indent)
	if commented {
		buf.WriteString("-- ")
	}
	buf.WriteString(name)
	buf.WriteString(" = ")
	buf.WriteString(literal)
	buf.WriteString(",\n")
}

// writeFontAliases writes single-path aliases as strings and the rest as
// lists, in alias order.
func (g *Generator) writeFontAliases(buf *bytes.Buffer, aliases map[string][]string) {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	buf.WriteString(g.indent)
	buf.WriteString(luaFieldFontAliases)
	buf.WriteString(" = {\n")

	for _, name := range names {
		paths := aliases[name]
		buf.WriteString(g.indent)
		buf.WriteString(g.indent)
		buf.WriteString("[")
		buf.WriteString(g.quoteLuaString(name))
		buf.WriteString("] = ")

		if len(paths) == 1 {
			buf.WriteString(g.quoteLuaString(paths[0]))
		} else {
			quoted := make([]string, len(paths))
			for i, p := range paths {
				quoted[i] = g.quoteLuaString(p)
			}
			buf.WriteString("{ ")
			buf.WriteString(strings.Join(quoted, ", "))
			buf.WriteString(" }")
		}
		buf.WriteString(",\n")
	}

	buf.WriteString(g.indent)
	buf.WriteString("},\n")
}

func (g *Generator) writeVerify(buf *bytes.Buffer, v VerifyConfig) {
	inner := g.indent + g.indent

	buf.WriteString(g.indent)
	buf.WriteString(luaFieldVerify)
	buf.WriteString(" = {\n")

	if len(v.Checksums) > 0 {
		names := make([]string, 0, len(v.Checksums))
		for name := range v.Checksums {
			names = append(names, name)
		}
		sort.Strings(names)

		buf.WriteString(inner)
		buf.WriteString(luaFieldChecksums)
		buf.WriteString(" = {\n")
		for _, name := range names {
			fmt.Fprintf(buf, "%s%s[%s] = %s,\n", inner, g.indent, g.quoteLuaString(name), g.quoteLuaString(v.Checksums[name]))
		}
		buf.WriteString(inner)
		buf.WriteString("},\n")
	}
	if v.ChecksumsFile != "" {
		fmt.Fprintf(buf, "%s%s = %s,\n", inner, luaFieldChecksumFile, g.quoteLuaString(v.ChecksumsFile))
	}
	if v.Signature {
		fmt.Fprintf(buf, "%s%s = true,\n", inner, luaFieldSignature)
	}
	if v.Keyring != "" {
		fmt.Fprintf(buf, "%s%s = %s,\n", inner, luaFieldKeyring, g.quoteLuaString(v.Keyring))
	}

	buf.WriteString(g.indent)
	buf.WriteString("},\n")
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}

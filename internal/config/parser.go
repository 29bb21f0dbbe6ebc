package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/platform"
)

// Parser evaluates Lua configs in a sandbox with the host platform table
// injected. It is safe for concurrent use; every parse gets its own VM.
type Parser struct {
	key     platform.Key
	report  *platform.Report
	timeout time.Duration
	logger  Logger
}

// ParserOption customizes a Parser.
type ParserOption func(*Parser)

// WithPlatformReport adds distribution details to the platform table.
func WithPlatformReport(r *platform.Report) ParserOption {
	return func(p *Parser) { p.report = r }
}

// WithParseTimeout bounds Lua evaluation (default: DefaultParseTimeout).
func WithParseTimeout(d time.Duration) ParserOption {
	return func(p *Parser) { p.timeout = d }
}

// WithLogger sets the logger used to report ignored fields.
func WithLogger(l Logger) ParserOption {
	return func(p *Parser) { p.logger = l }
}

// NewParser creates a config parser for the given platform key. A zero key
// leaves the platform global undefined.
func NewParser(key platform.Key, opts ...ParserOption) *Parser {
	p := &Parser{
		key:     key,
		timeout: DefaultParseTimeout,
		logger:  defaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = defaultLogger()
	}
	return p
}

// ParseString parses a Lua config from a string and applies it over the
// defaults. This is useful for testing and in-memory config generation.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	raw, err := p.evaluate(ctx, luaCode)
	if err != nil {
		return nil, err
	}
	return decode(provider{Provider: mapProvider(raw), name: "lua"})
}

// evaluate runs luaCode and returns the skia table as a koanf-shaped map.
func (p *Parser) evaluate(ctx context.Context, luaCode string) (map[string]interface{}, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.key.OS != "" {
		if err := platform.InjectPlatformTable(L, p.key, p.report); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ParseError{
				Message: "config evaluation aborted",
				Detail:  ctxErr.Error(),
			}
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return p.extractConfig(L)
}

// luaParser adapts Parser to koanf's Parser interface for file loading.
type luaParser struct {
	p   *Parser
	ctx context.Context
}

// Unmarshal implements koanf.Parser.
func (lp luaParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	return lp.p.evaluate(lp.ctx, string(b))
}

// Marshal implements koanf.Parser by rendering the map as a Lua config.
func (lp luaParser) Marshal(m map[string]interface{}) ([]byte, error) {
	cfg, err := decode(provider{Provider: mapProvider(m), name: "map"})
	if err != nil {
		return nil, err
	}
	out, err := NewGenerator().Generate(cfg)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global "skia" table. Fields that are absent are
// left out of the map so lower layers keep their values.
func (p *Parser) extractConfig(L *lua.LState) (map[string]interface{}, error) {
	skiaTable := L.GetGlobal(luaGlobalSkia)
	if skiaTable.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'skia' table",
			Detail:  fmt.Sprintf("expected table, got %s", skiaTable.Type()),
		}
	}
	table := skiaTable.(*lua.LTable)
	out := make(map[string]interface{})

	for _, field := range []string{luaFieldBinaryPath, luaFieldRegistry, luaFieldPackage, luaFieldVersion, luaFieldFontsPath} {
		v, ok, err := stringField(table, field, luaGlobalSkia)
		if err != nil {
			return nil, err
		}
		if ok {
			out[field] = v
		}
	}

	for _, field := range []string{luaFieldTimeout, luaFieldRetries} {
		if v := table.RawGetString(field); v.Type() != lua.LTNil {
			n, ok := v.(lua.LNumber)
			if !ok {
				return nil, typeError(luaGlobalSkia+"."+field, "number", v)
			}
			out[field] = int(n)
		}
	}

	for _, field := range []string{luaFieldLegacyLayout, luaFieldAllowARM32} {
		v, ok, err := boolField(table, field, luaGlobalSkia)
		if err != nil {
			return nil, err
		}
		if ok {
			out[field] = v
		}
	}

	if v := table.RawGetString(luaFieldFontAliases); v.Type() != lua.LTNil {
		aliasTable, ok := v.(*lua.LTable)
		if !ok {
			return nil, typeError(luaGlobalSkia+"."+luaFieldFontAliases, "table", v)
		}
		aliases, err := extractFontAliases(aliasTable)
		if err != nil {
			return nil, err
		}
		out[luaFieldFontAliases] = aliases
	}

	if v := table.RawGetString(luaFieldVerify); v.Type() != lua.LTNil {
		verifyTable, ok := v.(*lua.LTable)
		if !ok {
			return nil, typeError(luaGlobalSkia+"."+luaFieldVerify, "table", v)
		}
		verify, err := extractVerify(verifyTable)
		if err != nil {
			return nil, err
		}
		out[luaFieldVerify] = verify
	}

	p.warnUnknown(table)
	return out, nil
}

var knownFields = map[string]bool{
	luaFieldBinaryPath: true, luaFieldTimeout: true, luaFieldRetries: true, luaFieldRegistry: true,
	luaFieldPackage: true, luaFieldVersion: true, luaFieldFontsPath: true,
	luaFieldFontAliases: true, luaFieldLegacyLayout: true, luaFieldAllowARM32: true,
	luaFieldVerify: true,
}

func (p *Parser) warnUnknown(table *lua.LTable) {
	var unknown []string
	table.ForEach(func(key, _ lua.LValue) {
		if s, ok := key.(lua.LString); ok && !knownFields[string(s)] {
			unknown = append(unknown, string(s))
		}
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		p.logger.Warn("ignoring unknown config fields", "fields", strings.Join(unknown, ","))
	}
}

// extractFontAliases accepts `alias = "file"` and `alias = { "a", "b" }`.
// nil entries from platform conditionals are skipped.
func extractFontAliases(table *lua.LTable) (map[string]interface{}, error) {
	aliases := make(map[string]interface{})
	var err error

	table.ForEach(func(key, value lua.LValue) {
		if err != nil {
			return
		}
		alias, ok := key.(lua.LString)
		if !ok {
			err = &ParseError{
				Message: "invalid font alias",
				Detail:  fmt.Sprintf("alias names must be strings, got %s", key.Type()),
			}
			return
		}
		field := fmt.Sprintf("%s.%s[%q]", luaGlobalSkia, luaFieldFontAliases, string(alias))

		switch v := value.(type) {
		case lua.LString:
			aliases[string(alias)] = []interface{}{string(v)}
		case *lua.LTable:
			var paths []interface{}
			v.ForEach(func(_, item lua.LValue) {
				if err != nil || item.Type() == lua.LTNil {
					return
				}
				s, ok := item.(lua.LString)
				if !ok {
					err = typeError(field, "string", item)
					return
				}
				paths = append(paths, string(s))
			})
			aliases[string(alias)] = paths
		default:
			err = typeError(field, "string or list of strings", value)
		}
	})

	if err != nil {
		return nil, err
	}
	return aliases, nil
}

func extractVerify(table *lua.LTable) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	scope := luaGlobalSkia + "." + luaFieldVerify

	for _, field := range []string{luaFieldChecksumFile, luaFieldKeyring} {
		v, ok, err := stringField(table, field, scope)
		if err != nil {
			return nil, err
		}
		if ok {
			out[field] = v
		}
	}

	if v, ok, err := boolField(table, luaFieldSignature, scope); err != nil {
		return nil, err
	} else if ok {
		out[luaFieldSignature] = v
	}

	if v := table.RawGetString(luaFieldChecksums); v.Type() != lua.LTNil {
		sums, ok := v.(*lua.LTable)
		if !ok {
			return nil, typeError(scope+"."+luaFieldChecksums, "table", v)
		}
		checksums := make(map[string]interface{})
		var err error
		sums.ForEach(func(key, value lua.LValue) {
			if err != nil {
				return
			}
			name, okName := key.(lua.LString)
			sum, okSum := value.(lua.LString)
			if !okName || !okSum {
				err = &ParseError{
					Message: "invalid checksum entry",
					Detail:  fmt.Sprintf("%s.%s expects file name = hex digest pairs", scope, luaFieldChecksums),
				}
				return
			}
			checksums[string(name)] = strings.ToLower(string(sum))
		})
		if err != nil {
			return nil, err
		}
		out[luaFieldChecksums] = checksums
	}

	return out, nil
}

func stringField(table *lua.LTable, field, scope string) (string, bool, error) {
	v := table.RawGetString(field)
	if v.Type() == lua.LTNil {
		return "", false, nil
	}
	s, ok := v.(lua.LString)
	if !ok {
		return "", false, typeError(scope+"."+field, "string", v)
	}
	return string(s), true, nil
}

func boolField(table *lua.LTable, field, scope string) (bool, bool, error) {
	v := table.RawGetString(field)
	if v.Type() == lua.LTNil {
		return false, false, nil
	}
	b, ok := v.(lua.LBool)
	if !ok {
		return false, false, typeError(scope+"."+field, "boolean", v)
	}
	return bool(b), true, nil
}

func typeError(field, want string, got lua.LValue) *ParseError {
	return &ParseError{
		Message: "invalid type for " + field,
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		// Extract the most relevant part of the error
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}

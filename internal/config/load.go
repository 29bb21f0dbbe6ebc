package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/platform"
)

// keyDelim separates nested koanf keys. Checksum keys are archive file
// names and contain dots.
const keyDelim = "/"

// LoadOptions selects the layers Load merges over the defaults.
type LoadOptions struct {
	// Path to a .lua, .yaml or .yml file. Empty means defaults and flags only.
	Path string
	// Flags registered with RegisterFlags. Only flags set on the command
	// line override the file.
	Flags *pflag.FlagSet
	// Key and Report populate the Lua platform table.
	Key    platform.Key
	Report *platform.Report
	Logger Logger
}

// Load merges defaults, the config file and command-line flags, in that
// order, and validates the result.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	var providers []provider

	if opts.Path != "" {
		parser, err := parserFor(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider{file.Provider(opts.Path), parser, opts.Path})
		logger.Debug("loading config file", "path", opts.Path)
	}

	if opts.Flags != nil {
		providers = append(providers, provider{flagProvider(opts.Flags), nil, "flags"})
	}

	return decode(providers...)
}

func parserFor(ctx context.Context, opts LoadOptions, logger Logger) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(opts.Path)); ext {
	case ".lua":
		p := NewParser(opts.Key, WithPlatformReport(opts.Report), WithLogger(logger))
		return luaParser{p: p, ctx: ctx}, nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q (expected .lua, .yaml or .yml)", ext)
	}
}

// provider pairs a koanf provider with its parser. name labels errors.
type provider struct {
	koanf.Provider
	parser koanf.Parser
	name   string
}

// decode layers the providers over the defaults and validates the result.
func decode(layers ...provider) (*Config, error) {
	k := koanf.New(keyDelim)
	if err := k.Load(mapProvider(defaultMap()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	for _, l := range layers {
		if err := k.Load(l.Provider, l.parser); err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				return nil, err
			}
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mapProvider serves an in-memory nested map to koanf.
type mapProvider map[string]interface{}

// ReadBytes is not supported; koanf calls Read for this provider.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("map provider does not support ReadBytes")
}

// Read returns the map as-is.
func (m mapProvider) Read() (map[string]interface{}, error) {
	return map[string]interface{}(m), nil
}

func defaultMap() map[string]interface{} {
	d := Default()
	return map[string]interface{}{
		luaFieldBinaryPath:   d.NodeBinaryPath,
		luaFieldTimeout:      d.Timeout,
		luaFieldRetries:      d.DownloadRetries,
		luaFieldRegistry:     d.Registry,
		luaFieldPackage:      d.Package,
		luaFieldVersion:      d.Version,
		luaFieldFontsPath:    d.FontsPath,
		luaFieldLegacyLayout: d.LegacyLayout,
		luaFieldAllowARM32:   d.AllowARM32,
		luaFieldVerify: map[string]interface{}{
			luaFieldChecksumFile: "",
			luaFieldSignature:    false,
			luaFieldKeyring:      "",
		},
	}
}

// Command-line flags understood by Load.
const (
	FlagBaseDir        = "base-dir"
	FlagTimeout        = "timeout"
	FlagRetries        = "download-retries"
	FlagRegistry       = "registry"
	FlagPackage        = "package"
	FlagBindingVersion = "binding-version"
	FlagFontsPath      = "fonts-path"
	FlagLegacyLayout   = "legacy-layout"
	FlagAllowARM32     = "allow-arm32"
	FlagVerifySig      = "verify-signature"
	FlagKeyring        = "keyring"
	FlagChecksumsFile  = "checksums-file"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	FlagBaseDir:        luaFieldBinaryPath,
	FlagTimeout:        luaFieldTimeout,
	FlagRetries:        luaFieldRetries,
	FlagRegistry:       luaFieldRegistry,
	FlagPackage:        luaFieldPackage,
	FlagBindingVersion: luaFieldVersion,
	FlagFontsPath:      luaFieldFontsPath,
	FlagLegacyLayout:   luaFieldLegacyLayout,
	FlagAllowARM32:     luaFieldAllowARM32,
	FlagVerifySig:      luaFieldVerify + keyDelim + luaFieldSignature,
	FlagKeyring:        luaFieldVerify + keyDelim + luaFieldKeyring,
	FlagChecksumsFile:  luaFieldVerify + keyDelim + luaFieldChecksumFile,
}

// RegisterFlags adds the config override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagBaseDir, "", "directory the native binding is cached under (default "+DefaultBinaryPath+")")
	fs.Int(FlagTimeout, 0, "download timeout in milliseconds")
	fs.Int(FlagRetries, 0, "retry a failed download this many times (4xx responses excluded)")
	fs.String(FlagRegistry, "", "registry mirror base URL")
	fs.String(FlagPackage, "", "package that publishes the prebuilt bindings")
	fs.String(FlagBindingVersion, "", "version of the prebuilt bindings")
	fs.String(FlagFontsPath, "", "directory font alias paths are relative to")
	fs.Bool(FlagLegacyLayout, false, "cache as <name>.node without the version prefix")
	fs.Bool(FlagAllowARM32, false, "allow the linux-arm-glibc artifact")
	fs.Bool(FlagVerifySig, false, "require a valid OpenPGP signature for the archive")
	fs.String(FlagKeyring, "", "armored or binary OpenPGP public keyring")
	fs.String(FlagChecksumsFile, "", "SHA256SUMS-style file listing archive digests")
}

// flagProvider exposes changed flags under their config keys.
func flagProvider(fs *pflag.FlagSet) koanf.Provider {
	return posflag.ProviderWithFlag(fs, keyDelim, nil, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
}

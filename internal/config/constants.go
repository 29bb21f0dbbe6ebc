package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalSkia        = "skia"
	luaFieldBinaryPath   = "node_binary_path"
	luaFieldTimeout      = "timeout"
	luaFieldRetries      = "download_retries"
	luaFieldRegistry     = "registry"
	luaFieldPackage      = "package"
	luaFieldVersion      = "version"
	luaFieldFontsPath    = "fonts_path"
	luaFieldFontAliases  = "font_aliases"
	luaFieldLegacyLayout = "legacy_layout"
	luaFieldAllowARM32   = "allow_arm32"
	luaFieldVerify       = "verify"
	luaFieldChecksums    = "checksums"
	luaFieldChecksumFile = "checksums_file"
	luaFieldSignature    = "signature"
	luaFieldKeyring      = "keyring"
)

// Defaults applied before any file or flag is loaded.
const (
	DefaultBinaryPath   = "data/assets/canvas"
	DefaultTimeoutMS    = 60000
	DefaultRegistry     = "https://registry.npmmirror.com"
	DefaultPackage      = "skia-canvas"
	DefaultVersion      = "1.0.2"
	DefaultParseTimeout = 5 * time.Second
)

// Limits on user-supplied configuration.
const (
	MaxFontAliases     = 256
	MaxPathsPerAlias   = 32
	MaxTimeoutMS       = 60 * 60 * 1000
	MaxDownloadRetries = 10
	maxChecksumEntries = 64
)

// Package service wires configuration, provisioning and loading into the
// single call a host makes at startup.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/binary"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/capability"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/config"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/fonts"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/logging"
	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/platform"
)

// Fingerprinter reports the host platform.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) platform.Key
}

// Loader opens a provisioned module.
type Loader func(path string) (*capability.Capability, error)

// Options are the collaborators of Skia. Every field is optional.
type Options struct {
	Fingerprinter Fingerprinter
	Logger        *slog.Logger
	Metrics       *binary.Metrics
	HTTPClient    *http.Client
	Progress      binary.ProgressObserver
	// Registrar receives font aliases after the module loads. Aliases are
	// skipped when nil.
	Registrar fonts.Registrar
	Load      Loader
	Clock     Clock
}

// Skia provisions and loads the canvas module described by a Config.
type Skia struct {
	cfg      *config.Config
	opts     Options
	logger   *slog.Logger
	resolved *binary.ResolvedPath

	mu      sync.Mutex
	manager *binary.Manager
}

// New creates the service. cfg must already be validated.
func New(cfg *config.Config, opts Options) (*Skia, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Fingerprinter == nil {
		opts.Fingerprinter = platform.NewFingerprinter()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Load == nil {
		opts.Load = capability.Load
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	return &Skia{
		cfg:      cfg,
		opts:     opts,
		logger:   opts.Logger,
		resolved: &binary.ResolvedPath{},
	}, nil
}

// ResolvedPath is published after every successful provisioning.
func (s *Skia) ResolvedPath() *binary.ResolvedPath {
	return s.resolved
}

// Manager returns the binary manager for this host, creating it on first use.
func (s *Skia) Manager(ctx context.Context) (*binary.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager != nil {
		return s.manager, nil
	}

	key := s.opts.Fingerprinter.Fingerprint(ctx)
	m, err := binary.NewManager(ManagerConfig(s.cfg, key, s.opts, s.resolved))
	if err != nil {
		return nil, fmt.Errorf("create binary manager: %w", err)
	}
	s.manager = m
	return m, nil
}

// Start ensures the module is present, loads it and registers font
// aliases. Font problems are logged, not returned.
func (s *Skia) Start(ctx context.Context) (*capability.Capability, error) {
	start := s.opts.Clock.Now()

	m, err := s.Manager(ctx)
	if err != nil {
		return nil, err
	}

	res, err := m.EnsureArtifact(ctx)
	if err != nil {
		logging.LogError(ctx, s.logger, "native module provisioning failed", err)
		return nil, err
	}

	module, err := s.opts.Load(res.Path)
	if err != nil {
		return nil, fmt.Errorf("load native module: %w", err)
	}

	if len(s.cfg.FontAliases) > 0 && s.opts.Registrar != nil {
		registry := fonts.NewRegistry(s.cfg.FontsPath, s.cfg.FontAliases, s.logger)
		if err := registry.Register(ctx, s.opts.Registrar); err != nil {
			s.logger.WarnContext(ctx, "some font aliases were not registered", "error", err)
		}
	}

	s.logger.InfoContext(ctx, "canvas module started",
		"path", res.Path,
		"state", string(res.State),
		"exports", len(module.Available()),
		"elapsed", s.opts.Clock.Now().Sub(start),
	)
	return module, nil
}

// Status reports the cache entry for this host without provisioning.
func (s *Skia) Status(ctx context.Context) (*binary.Status, error) {
	m, err := s.Manager(ctx)
	if err != nil {
		return nil, err
	}
	return m.Status()
}

// ManagerConfig translates a Config into binary manager settings for key.
func ManagerConfig(cfg *config.Config, key platform.Key, opts Options, published *binary.ResolvedPath) binary.Config {
	bc := binary.Config{
		BaseDir: cfg.NodeBinaryPath,
		Key:     key,
		Version: cfg.Version,
		Resolve: binary.ResolveOptions{
			Registry:     cfg.Registry,
			Package:      cfg.Package,
			LegacyLayout: cfg.LegacyLayout,
			AllowARM32:   cfg.AllowARM32,
		},
		Timeout: cfg.TimeoutDuration(),
		Retries: uint64(cfg.DownloadRetries),
		Verify: binary.VerifyOptions{
			Checksums:     cfg.Verify.Checksums,
			ChecksumsFile: cfg.Verify.ChecksumsFile,
			Signature:     cfg.Verify.Signature,
			KeyringPath:   cfg.Verify.Keyring,
		},
		HTTPClient:       opts.HTTPClient,
		Metrics:          opts.Metrics,
		ProgressObserver: opts.Progress,
		Published:        published,
	}
	if opts.Logger != nil {
		bc.Logger = opts.Logger.With("component", "binary")
	}
	if abs, err := filepath.Abs(bc.BaseDir); err == nil {
		bc.BaseDir = abs
	}
	return bc
}

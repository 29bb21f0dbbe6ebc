package binary

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/platform"
)

const tracerName = "github.com/ZebulonRouseFrantzich/skiacanvas/internal/binary"

// Config holds configuration for the binary manager
type Config struct {
	// BaseDir is the caller-owned cache root; created if absent.
	BaseDir string
	// Key is the fingerprint of the host.
	Key platform.Key
	// Version of the bindings (default: DefaultVersion).
	Version string
	// Resolve adjusts registry, package name and cache layout.
	Resolve ResolveOptions
	// Timeout bounds the download step only (default: DefaultTimeout).
	Timeout time.Duration
	// Verify enables checksum and signature checks. Off by default.
	Verify VerifyOptions
	// Retries is how many times a failed download is retried. Zero, the
	// default, fails on the first error. 4xx responses are never retried.
	Retries uint64
	// RetryBackoff is the first retry delay, doubled per attempt
	// (default: DefaultRetryBackoff).
	RetryBackoff time.Duration

	HTTPClient       *http.Client
	Logger           Logger
	Metrics          *Metrics
	StateObserver    StateObserver
	ProgressObserver ProgressObserver
	// Published receives the final path after each success.
	Published *ResolvedPath
}

// Manager provisions the native binding for one platform key.
type Manager struct {
	baseDir   string
	key       platform.Key
	version   string
	resolve   ResolveOptions
	verify    VerifyOptions
	logger    Logger
	metrics   *Metrics
	observer  StateObserver
	progress  ProgressObserver
	published *ResolvedPath
	tracer    trace.Tracer

	downloader *Downloader
	verifier   *Verifier
	extractor  *Extractor
	cleaner    *Cleaner

	group singleflight.Group
}

// NewManager creates a new binary manager
func NewManager(config Config) (*Manager, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("BaseDir is required")
	}
	if config.Key.OS == "" || config.Key.Arch == "" {
		return nil, fmt.Errorf("platform key is required")
	}

	version := config.Version
	if version == "" {
		version = DefaultVersion
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := loggerOrNop(config.Logger)

	dlOpts := []DownloaderOption{WithTimeout(timeout), WithDownloadLogger(logger)}
	if config.HTTPClient != nil {
		dlOpts = append(dlOpts, WithHTTPClient(config.HTTPClient))
	}
	if config.Retries > 0 {
		backoff := config.RetryBackoff
		if backoff <= 0 {
			backoff = DefaultRetryBackoff
		}
		dlOpts = append(dlOpts, WithRetries(config.Retries, backoff))
	}

	return &Manager{
		baseDir:    config.BaseDir,
		key:        config.Key,
		version:    version,
		resolve:    config.Resolve,
		verify:     config.Verify,
		logger:     logger,
		metrics:    config.Metrics,
		observer:   config.StateObserver,
		progress:   config.ProgressObserver,
		published:  config.Published,
		tracer:     otel.Tracer(tracerName),
		downloader: NewDownloader(dlOpts...),
		verifier:   NewVerifier(config.Verify),
		extractor:  NewExtractor(),
		cleaner:    NewCleaner(logger),
	}, nil
}

// Descriptor resolves the artifact this manager provisions.
func (m *Manager) Descriptor() (*Descriptor, error) {
	return Resolve(m.key, m.version, m.baseDir, m.resolve)
}

// EnsureArtifact makes sure the native binary for the host is present and
// returns its location. A cached binary short-circuits every other step.
// Concurrent calls for the same artifact share one attempt within the
// process; a lock file serializes attempts across processes.
func (m *Manager) EnsureArtifact(ctx context.Context) (*Result, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "binary.EnsureArtifact", trace.WithAttributes(
		attribute.String("platform", m.key.String()),
		attribute.String("version", m.version),
	))
	defer span.End()

	t := &tracker{m: m, state: StateIdle}
	res, err := m.ensure(ctx, t)

	elapsed := time.Since(start)
	if err != nil {
		t.to(StateFailed)
		m.metrics.observe(outcomeOf(err), 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res.Duration = elapsed
	m.metrics.observe(string(res.State), res.Bytes, elapsed)
	m.published.publish(res.Path)
	span.SetAttributes(
		attribute.String("artifact", res.Descriptor.Name),
		attribute.String("state", string(res.State)),
	)
	return res, nil
}

func (m *Manager) ensure(ctx context.Context, t *tracker) (*Result, error) {
	t.to(StateResolving)

	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return nil, m.wrap(err, nil, t.current())
	}

	d, err := m.Descriptor()
	if err != nil {
		return nil, m.wrap(err, nil, t.current())
	}
	t.d = d

	v, err, shared := m.group.Do(d.FinalPath, func() (interface{}, error) {
		return m.provision(ctx, d, t)
	})
	if err != nil {
		return nil, err
	}

	res := *v.(*Result)
	if shared && !t.current().Terminal() {
		// Followers only observe the outcome of the leader's attempt.
		res.Bytes = 0
		t.to(res.State)
	}
	return &res, nil
}

// provision runs the pipeline for d. Errors it returns are already wrapped.
func (m *Manager) provision(ctx context.Context, d *Descriptor, t *tracker) (*Result, error) {
	t.to(StateProbing)
	if IsCached(d) {
		t.to(StateCached)
		return &Result{Descriptor: d, Path: d.FinalPath, State: StateCached}, nil
	}

	lock, err := AcquireLock(ctx, LockPath(d))
	if err != nil {
		return nil, m.wrap(err, d, t.current())
	}
	defer func() {
		if err := lock.Release(); err != nil {
			m.logger.Warn("failed to release provisioning lock", "error", err)
		}
	}()

	// Another process may have finished while we waited for the lock.
	if IsCached(d) {
		t.to(StateCached)
		return &Result{Descriptor: d, Path: d.FinalPath, State: StateCached}, nil
	}

	scratch, err := os.MkdirTemp(m.baseDir, ".scratch-"+d.Name+"-*")
	if err != nil {
		return nil, m.wrap(fmt.Errorf("create scratch dir: %w", err), d, t.current())
	}
	st := &provisioningState{
		scratchDir:  scratch,
		archivePath: filepath.Join(scratch, d.ArchiveFileName),
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			t.to(StateCleaning)
			m.cleaner.Cleanup(ctx, st.scratchDir)
		})
	}
	defer cleanup()

	m.logger.Info("provisioning native binding", "artifact", d.Name, "url", d.URL, "path", d.FinalPath)

	t.to(StateDownloading)
	n, err := m.downloader.Download(ctx, d.URL, st.archivePath, m.progress)
	if err != nil {
		return nil, m.wrap(err, d, t.current())
	}
	st.downloadedBytes = n
	m.logger.Info("archive downloaded", "archive", st.archivePath, "bytes", n)

	verified := VerificationNone
	if m.verify.Enabled() {
		t.to(StateVerifying)
		verified, err = m.verifyArchive(ctx, d, st)
		if err != nil {
			return nil, m.wrap(err, d, t.current())
		}
	}

	t.to(StateExtracting)
	st.extractedRoot, err = m.extractor.Extract(st.archivePath, st.scratchDir)
	if err != nil {
		return nil, m.wrap(err, d, t.current())
	}
	src, err := Locate(st.extractedRoot, PreferredSubdir, BinaryFileName)
	if err != nil {
		return nil, m.wrap(err, d, t.current())
	}
	m.logger.Debug("archive extracted", "binary", src)

	t.to(StateRelocating)
	if err := Relocate(src, d.FinalPath); err != nil {
		return nil, m.wrap(err, d, t.current())
	}

	cleanup()

	if receipt, err := NewReceipt(d, verified); err != nil {
		m.logger.Warn("failed to build receipt", "path", d.FinalPath, "error", err)
	} else if err := receipt.Save(ReceiptPath(d)); err != nil {
		m.logger.Warn("failed to save receipt", "path", ReceiptPath(d), "error", err)
	}

	t.to(StateReady)
	m.logger.Info("native binding ready", "path", d.FinalPath, "verified", verified.String())
	return &Result{
		Descriptor: d,
		Path:       d.FinalPath,
		State:      StateReady,
		Verified:   verified,
		Bytes:      st.downloadedBytes,
	}, nil
}

func (m *Manager) verifyArchive(ctx context.Context, d *Descriptor, st *provisioningState) (VerificationMethod, error) {
	var sigPath string
	if m.verify.Signature {
		sigPath = st.archivePath + ".sig"
		if _, err := m.downloader.Download(ctx, SignatureURL(d.URL), sigPath, nil); err != nil {
			return VerificationNone, &IntegrityError{Archive: d.ArchiveFileName, Method: VerificationGPG, Cause: err}
		}
	}
	return m.verifier.Verify(st.archivePath, d.ArchiveFileName, sigPath)
}

// wrap attaches the target path, platform and failing state to err while
// keeping the typed cause reachable through errors.As.
func (m *Manager) wrap(err error, d *Descriptor, state State) error {
	path := m.baseDir
	name := m.key.String()
	if d != nil {
		path = d.FinalPath
		name = d.Name
	}
	return oops.
		Code("PROVISION_FAILED").
		In("binary").
		With("path", path).
		With("platform", m.key.String()).
		With("state", string(state)).
		Wrapf(err, "failed to provision %s on %s", name, m.key.String())
}

// Status describes the cache entry for the host without provisioning.
type Status struct {
	Descriptor *Descriptor
	Cached     bool
	Receipt    *Receipt // nil when no receipt was written
}

// Status reports whether the binary is cached and how it got there.
func (m *Manager) Status() (*Status, error) {
	d, err := m.Descriptor()
	if err != nil {
		return nil, err
	}
	s := &Status{Descriptor: d, Cached: IsCached(d)}
	if s.Cached {
		if r, err := LoadReceipt(ReceiptPath(d)); err == nil {
			s.Receipt = r
		}
	}
	return s, nil
}

// tracker walks the state machine for one call and notifies the observer.
type tracker struct {
	m     *Manager
	d     *Descriptor
	mu    sync.Mutex
	state State
}

func (t *tracker) current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *tracker) to(next State) {
	t.mu.Lock()
	from := t.state
	t.state = next
	t.mu.Unlock()

	t.m.logger.Debug("provisioning state", "from", string(from), "to", string(next))
	if t.m.observer != nil {
		t.m.observer.OnState(t.d, from, next)
	}
}

// Package binary provisions the prebuilt native canvas binding for the
// running host.
//
// # Pipeline
//
// A platform.Key is mapped to a published artifact name (Resolve), the
// local cache is probed (IsCached) and, on a miss, the archive is streamed
// from the registry mirror (Downloader), optionally verified (Verifier),
// unpacked into a scratch directory (Extractor, Locate), moved atomically to
// its final path (Relocate) and the scratch directory is removed (Cleaner).
// Manager.EnsureArtifact drives the whole sequence as a state machine:
//
//	Idle → Resolving → Probing → Cached
//	                           → Downloading → [Verifying] → Extracting
//	                             → Relocating → Cleaning → Ready
//	any step → Failed
//
// The final path is either absent or complete: every write goes to a
// sibling temporary file that is renamed into place.
//
// # Verification
//
// Archives are trusted on download unless VerifyOptions asks for a SHA256
// manifest entry or a detached OpenPGP signature published at <url>.sig.
//
// # Usage
//
//	mgr, err := binary.NewManager(binary.Config{
//	    BaseDir: "/var/lib/app/canvas",
//	    Key:     platform.NewFingerprinter().Fingerprint(ctx),
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := mgr.EnsureArtifact(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Path)
package binary

package config

import (
	"context"
	"sync"
	"testing"
)

// TestParser_Concurrent tests that the parser is safe for concurrent use.
func TestParser_Concurrent(t *testing.T) {
	parser := NewParser(linuxGlibc)
	luaCode := `skia = { timeout = 1000, font_aliases = { Inter = { "a.ttf", platform.when(platform.is_linux, "b.ttf") } } }`

	const numGoroutines = 50
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := parser.ParseString(context.Background(), luaCode)
			if err != nil {
				errs <- err
				return
			}
			if len(cfg.FontAliases["Inter"]) != 2 {
				t.Errorf("FontAliases = %v", cfg.FontAliases)
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent parse failed: %v", err)
	}
}

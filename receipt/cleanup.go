package receipt

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StartCleanup sweeps the receipts directory on every tick and removes PDFs
// older than maxAge. Correctness never depends on the sweep; it only bounds
// disk usage. Close stop to shut it down.
func (s *Store) StartCleanup(interval, maxAge time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(maxAge)
			case <-stop:
				return
			}
		}
	}()
}

func (s *Store) sweep(maxAge time.Duration) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		log.Printf("receipt cleanup: read dir failed: %v", err)
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.Dir, e.Name())
			if err := os.Remove(path); err != nil {
				log.Printf("receipt cleanup: remove %s failed: %v", e.Name(), err)
				continue
			}
			log.Printf("receipt cleanup: removed old PDF %s", e.Name())
		}
	}
}

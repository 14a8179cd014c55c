package server

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/buildpulse/internal/alerting"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// SeedRules loads the YAML rules file and upserts each rule by name.
// Existing rules keep their ID and creation time; their definition is
// replaced by the file's. Rules created through the API and absent from
// the file are left alone.
func SeedRules(ctx context.Context, rules storage.RuleRepository, registry alerting.RuleRegistry, path string) error {
	loaded, err := alerting.LoadRulesFromFile(path)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	now := time.Now()
	for _, rule := range loaded {
		existing, err := rules.GetByName(ctx, rule.Name)
		if err != nil {
			return fmt.Errorf("lookup rule %q: %w", rule.Name, err)
		}

		if existing == nil {
			rule.ID = uuid.New().String()
			rule.CreatedAt = now
			rule.UpdatedAt = now
			if err := rules.Create(ctx, rule); err != nil {
				return fmt.Errorf("create rule %q: %w", rule.Name, err)
			}
			log.Printf("rules: seeded %q (%s)", rule.Name, rule.ID)
			continue
		}

		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
		rule.UpdatedAt = now
		if err := rules.Update(ctx, rule); err != nil {
			return fmt.Errorf("update rule %q: %w", rule.Name, err)
		}
	}

	registry.Invalidate()
	log.Printf("rules: %d rule(s) loaded from %s", len(loaded), path)
	return nil
}

// reloadDebounce coalesces the burst of fsnotify events an editor save
// produces into one reload.
const reloadDebounce = 500 * time.Millisecond

// WatchRules re-seeds the rules whenever the file changes. The watch is
// on the directory because editors typically replace the file rather
// than write it in place. Blocks until the context is canceled.
func WatchRules(ctx context.Context, rules storage.RuleRepository, registry alerting.RuleRegistry, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve rules path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch rules directory: %w", err)
	}

	log.Printf("rules: watching %s for changes", absPath)

	var pending *time.Timer
	var pendingC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(reloadDebounce)
				pendingC = pending.C
			} else {
				pending.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("rules: watcher error: %v", err)
		case <-pendingC:
			pending = nil
			pendingC = nil
			// A bad edit must not take down running rules.
			if err := SeedRules(ctx, rules, registry, absPath); err != nil {
				log.Printf("rules: reload failed, keeping previous rules: %v", err)
			}
		}
	}
}

package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/prompts"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk, falling
// back to the built-in templates.
//
// The store is lazy: the directory and the default files are only created
// on the first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.neurovault/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".neurovault", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// An empty or unreadable file falls back to the built-in template.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := prompts.Default(name); ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil || prompt == "" {
		if def, ok := prompts.Default(name); ok {
			return def, nil
		}
		if err == nil {
			err = fmt.Errorf("empty file")
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Watch reloads the cache whenever a prompt file changes, until ctx is
// cancelled. Long-running surfaces (serve, mcp, the TUI) call it so edits
// apply without a restart.
func (s *PromptStore) Watch(ctx context.Context) error {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return s.initErr
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.promptDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.promptDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isPromptChange(ev) {
				logger.Debug("Prompt file %s changed (%s), reloading", filepath.Base(ev.Name), ev.Op)
				s.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Prompt watcher: %v", err)
		}
	}
}

// isPromptChange reports whether ev touches a prompt template.
// Chmod events and non-template files are ignored.
func isPromptChange(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != ".txt" || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// initialise creates the prompt directory, the default files and a README.
// Existing files are never overwritten.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for _, name := range prompts.Names() {
		content, _ := prompts.Default(name)
		if err := writeIfMissing(filepath.Join(s.promptDir, name+".txt"), content); err != nil {
			s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
			return
		}
	}

	if err := writeIfMissing(filepath.Join(s.promptDir, "README.md"), readme); err != nil {
		s.initErr = err
	}
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0600)
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

var readme = `# NeuroVault Prompts

These files hold the prompts NeuroVault sends to the language model.

## Files

- ` + "`answer_system.txt`" + ` - Rules for answering from your notes only
- ` + "`answer_user.txt`" + ` - Wraps the retrieved context and the question
- ` + "`verify_system.txt`" + ` - Policy the fact-checker applies to answers
- ` + "`verify_user.txt`" + ` - Material handed to the fact-checker
- ` + "`summarise.txt`" + ` - Summaries stored with ingested notes
- ` + "`image_analysis.txt`" + ` - Description and tags for ingested images

## Customisation

Edit any file to change the behaviour. Running servers pick up the change
immediately; other commands read it on their next run. Delete a file, or
leave it empty, to go back to the built-in prompt.

## Format Placeholders

Some prompts take Go fmt placeholders, filled in order:

- ` + "`answer_user`" + `: ` + "`%s`" + ` context, ` + "`%s`" + ` question
- ` + "`verify_user`" + `: ` + "`%s`" + ` date, ` + "`%s`" + ` context, ` + "`%s`" + ` question, ` + "`%s`" + ` answer
- ` + "`summarise`" + `: ` + "`%d`" + ` max length, ` + "`%s`" + ` text

Keep the placeholders in a customised prompt.
`

package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/fsnotify.v1"
	"gopkg.in/yaml.v3"
)

// Registry manages a collection of segmentation profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, profile *Profile)
}

// NewRegistry creates a registry seeded with the built-in profile.
func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[string]*Profile),
	}
	r.profiles[DefaultProfileID] = DefaultProfile()
	return r
}

// NewRegistryWithDirectory creates a registry and loads profiles from the
// directory on top of the built-in one.
func NewRegistryWithDirectory(dir string) (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// Register validates, compiles, and adds a profile to the registry.
// Re-registering an existing profile id replaces it.
func (r *Registry) Register(profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if !profile.IsCompiled() {
		if err := profile.Compile(); err != nil {
			return fmt.Errorf("compiling profile %q: %w", profile.ProfileID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.ProfileID] = profile
	return nil
}

// Unregister removes a profile. The built-in profile cannot be removed.
func (r *Registry) Unregister(profileID string) error {
	if profileID == DefaultProfileID {
		return fmt.Errorf("cannot unregister built-in profile %q", DefaultProfileID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[profileID]; !ok {
		return fmt.Errorf("profile %q not found", profileID)
	}
	delete(r.profiles, profileID)
	return nil
}

// Get returns a profile by id.
func (r *Registry) Get(profileID string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[profileID]
	return p, ok
}

// Default returns the built-in profile.
func (r *Registry) Default() *Profile {
	p, _ := r.Get(DefaultProfileID)
	return p
}

// List returns all registered profiles.
func (r *Registry) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	return profiles
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// LoadDirectory loads all YAML profile files from a directory. A missing
// directory is not an error: there is simply nothing to load.
func (r *Registry) LoadDirectory(dir string) error {
	r.dir = dir

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, name)); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading profiles: %s", strings.Join(loadErrors, "; "))
	}
	return nil
}

// LoadFile loads a single profile file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if err := r.Register(&profile); err != nil {
		return fmt.Errorf("registering profile: %w", err)
	}
	return nil
}

// Reload replaces all file-loaded profiles from the configured directory.
// The built-in profile always survives a reload.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}

	r.mu.Lock()
	r.profiles = map[string]*Profile{DefaultProfileID: DefaultProfile()}
	r.mu.Unlock()

	return r.LoadDirectory(r.dir)
}

// SetOnChange sets a callback invoked when a watched profile changes.
func (r *Registry) SetOnChange(fn func(event string, profile *Profile)) {
	r.onChange = fn
}

// Watch starts watching the profile directory for changes.
func (r *Registry) Watch() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})

	go r.watchLoop()

	if err := watcher.Add(r.dir); err != nil {
		r.watcher.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}
	return nil
}

// StopWatch stops watching the profile directory.
func (r *Registry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

// watchLoop handles file system events.
func (r *Registry) watchLoop() {
	for {
		select {
		case <-r.stopChan:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")
			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")
			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				// Profiles do not track which file they came from, so a
				// removal reloads the whole directory.
				if err := r.Reload(); err != nil {
					continue
				}
			}

		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// handleFileChange loads a created or modified profile file and notifies
// the change callback.
func (r *Registry) handleFileChange(path string, eventType string) {
	if err := r.LoadFile(path); err != nil {
		return
	}
	if r.onChange != nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var profile Profile
		if yaml.Unmarshal(data, &profile) == nil {
			if p, ok := r.Get(profile.ProfileID); ok {
				r.onChange(eventType, p)
			}
		}
	}
}

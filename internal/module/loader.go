package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Loader resolves module names to compiled Modules, caching by name
// and honoring the colon-separated JL_MODULE_PATH search path
// (spec.md §6, "Environment variables consumed: module search path").
// Grounded on the teacher's internal/module.ModuleLoader, stripped of
// the source-compilation path (out of scope for this core) and kept
// to pure bytecode-file loading.
type Loader struct {
	mu         sync.RWMutex
	cache      map[string]*Module
	searchPath []string
}

const searchPathEnvVar = "JL_MODULE_PATH"

func NewLoader() *Loader {
	return &Loader{
		cache:      make(map[string]*Module),
		searchPath: defaultSearchPath(),
	}
}

func defaultSearchPath() []string {
	paths := []string{"."}
	if env := os.Getenv(searchPathEnvVar); env != "" {
		paths = append(paths, strings.Split(env, ":")...)
	}
	return paths
}

func (l *Loader) AddSearchPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searchPath = append(l.searchPath, path)
}

// Load resolves and loads a module by name, consulting the cache
// first, then the search path for "<name>.jb" files.
func (l *Loader) Load(name string) (*Module, error) {
	l.mu.RLock()
	if m, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return m, nil
	}
	paths := append([]string{}, l.searchPath...)
	l.mu.RUnlock()

	path, err := findModuleFile(name, paths)
	if err != nil {
		return nil, err
	}
	m, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("module: loading %s: %w", name, err)
	}

	l.mu.Lock()
	l.cache[name] = m
	l.mu.Unlock()
	return m, nil
}

func findModuleFile(name string, searchPath []string) (string, error) {
	if strings.HasSuffix(name, ".jb") {
		if fileExists(name) {
			return name, nil
		}
		return "", fmt.Errorf("module: file not found: %s", name)
	}
	for _, dir := range searchPath {
		path := filepath.Join(dir, name+".jb")
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("module: not found in search path: %s", name)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

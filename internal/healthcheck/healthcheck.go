// Package healthcheck verifies that a configuration can drive an analysis:
// hierarchy files parse, the class table builds and the cache directory is
// writable.
package healthcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-bytecode-flow/internal/config"
	"github.com/l3aro/go-bytecode-flow/pkg/hierarchy"
)

// Status values of an ItemStatus.
const (
	StatusOK    = "ok"
	StatusWarn  = "warn"
	StatusError = "error"
)

// ItemStatus represents the health of one configured resource.
type ItemStatus struct {
	Name   string // file path or resource name
	Status string // "ok", "warn" or "error"
	Detail string
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	HierarchyFiles []ItemStatus
	Hierarchy      ItemStatus
	CacheDir       ItemStatus
}

// HasError reports whether any check failed.
func (r *HealthCheckResult) HasError() bool {
	if r.Hierarchy.Status == StatusError || r.CacheDir.Status == StatusError {
		return true
	}
	for _, f := range r.HierarchyFiles {
		if f.Status == StatusError {
			return true
		}
	}
	return false
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(cfg *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	for _, path := range cfg.HierarchyFiles {
		result.HierarchyFiles = append(result.HierarchyFiles, checkHierarchyFile(path))
	}
	result.Hierarchy = checkHierarchy(cfg)
	result.CacheDir = checkCacheDir(cfg.CacheDir)

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, config.DirName)
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

func checkHierarchyFile(path string) ItemStatus {
	classes, err := hierarchy.LoadFile(path)
	if err != nil {
		return ItemStatus{Name: path, Status: StatusError, Error: err.Error()}
	}
	if len(classes) == 0 {
		return ItemStatus{Name: path, Status: StatusWarn, Detail: "declares no classes"}
	}
	return ItemStatus{Name: path, Status: StatusOK, Detail: fmt.Sprintf("%d classes", len(classes))}
}

// checkHierarchy builds the class table the analyzer will use.
func checkHierarchy(cfg *config.Config) ItemStatus {
	st := ItemStatus{Name: "class hierarchy"}
	h, err := hierarchy.Load(cfg.BuiltinHierarchy, cfg.HierarchyFiles...)
	switch {
	case err != nil:
		st.Status = StatusError
		st.Error = err.Error()
	case h.Len() == 1:
		st.Status = StatusWarn
		st.Detail = "only java/lang/Object is known; reference merges widen to it"
	default:
		st.Status = StatusOK
		st.Detail = fmt.Sprintf("%d classes", h.Len())
		if cfg.BuiltinHierarchy {
			st.Detail += " (builtin included)"
		}
	}
	return st
}

// checkCacheDir verifies that check results can be persisted under dir.
func checkCacheDir(dir string) ItemStatus {
	st := ItemStatus{Name: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		st.Status = StatusError
		st.Error = err.Error()
		return st
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		st.Status = StatusError
		st.Error = err.Error()
		return st
	}
	f.Close()
	os.Remove(f.Name())
	st.Status = StatusOK
	st.Detail = "writable"
	return st
}

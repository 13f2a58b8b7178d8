package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-bytecode-flow/internal/log"
	"github.com/l3aro/go-bytecode-flow/internal/scanner"
	"github.com/l3aro/go-bytecode-flow/pkg/cache"
	"github.com/l3aro/go-bytecode-flow/pkg/dfg"
	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

const (
	// checkCacheFile is the results cache inside the cache directory.
	checkCacheFile = "check.msgpack"
	// checkCacheSize bounds the number of remembered file results.
	checkCacheSize = 10000
)

// FileResult is the outcome of checking one method file.
type FileResult struct {
	Path    string       `json:"path" msgpack:"-"`
	Summary *dfg.Summary `json:"summary,omitempty" msgpack:"summary,omitempty"`
	Error   string       `json:"error,omitempty" msgpack:"error,omitempty"`
	Offset  int          `json:"offset,omitempty" msgpack:"offset,omitempty"` // failing instruction, -1 if none
	Cached  bool         `json:"cached,omitempty" msgpack:"-"`
}

// Wonky reports whether the file analyzed with wonky frames.
func (r FileResult) Wonky() bool { return r.Summary != nil && len(r.Summary.Wonky) > 0 }

// CheckOutput represents the output of the check command
type CheckOutput struct {
	Root      string       `json:"root"`
	Files     []FileResult `json:"files"`
	Checked   int          `json:"checked"`
	Failed    int          `json:"failed"`
	Wonky     int          `json:"wonky"` // files with at least one wonky frame
	CacheHits int          `json:"cache_hits"`
}

type checkOptions struct {
	strict     bool
	jsonOutput bool
	noCache    bool
	progress   bool
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Analyze every method file under a directory",
	Long: `Scans the directory for YAML and JSON method files and analyzes them
concurrently. Results are cached by file content, so unchanged files are not
analyzed again. Fails when any file cannot be analyzed, and in strict mode
when any frame is wonky.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("getting absolute path: %w", err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat path: %w", err)
		}
		configDir := absPath
		if !info.IsDir() {
			configDir = filepath.Dir(absPath)
		}

		e, err := loadEnv(configDir)
		if err != nil {
			return err
		}

		strict, _ := cmd.Flags().GetBool("strict")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		opts := checkOptions{
			strict:     strict || e.cfg.Strict,
			jsonOutput: jsonOutput,
			noCache:    noCache,
			progress:   !jsonOutput && log.IsTTY(),
		}
		return runCheck(cmd.Context(), cmd.OutOrStdout(), e, absPath, configDir, opts)
	},
}

func runCheck(ctx context.Context, w io.Writer, e *env, root, base string, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	scanOpts := scanner.DefaultOptions()
	scanOpts.Extensions = e.cfg.Extensions
	files, err := scanner.ScanWithOptions(root, scanOpts)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	results := cache.New[FileResult](cache.Options[FileResult]{MaxSize: checkCacheSize})
	cachePath := cacheFilePath(e.cfg.CacheDir, base)
	if !opts.noCache {
		if err := cache.LoadFromFile(results, cachePath); err != nil {
			e.logger.Warn("discarding check cache", "path", cachePath, "error", err)
			results.Clear()
		}
	}

	fingerprint, err := hierarchyFingerprint(e)
	if err != nil {
		return err
	}

	var spinner *log.ProgressSpinner
	if opts.progress && len(files) > 0 {
		spinner = log.NewProgressSpinner(os.Stderr, fmt.Sprintf("checking 0/%d", len(files)))
		spinner.Start()
	}

	out := CheckOutput{Root: root, Files: make([]FileResult, len(files))}
	var done, hits atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := checkFile(e, results, f, fingerprint, opts.noCache)
			if res.Cached {
				hits.Add(1)
			}
			out.Files[i] = res
			n := done.Add(1)
			if spinner != nil {
				spinner.Message(fmt.Sprintf("checking %d/%d", n, len(files)))
			}
			return nil
		})
	}
	err = g.Wait()
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if !opts.noCache {
		if err := cache.PersistToFile(results, cachePath); err != nil {
			e.logger.Warn("failed to save check cache", "path", cachePath, "error", err)
		}
	}

	out.Checked = len(files)
	out.CacheHits = int(hits.Load())
	for _, r := range out.Files {
		switch {
		case r.Error != "":
			out.Failed++
		case r.Wonky():
			out.Wonky++
		}
	}
	e.logger.Info("checked method files", "files", out.Checked, "failed", out.Failed, "wonky", out.Wonky, "cached", out.CacheHits)

	if opts.jsonOutput {
		if err := writeJSON(w, out); err != nil {
			return err
		}
	} else {
		printCheck(w, out)
	}

	if out.Failed > 0 {
		return fmt.Errorf("%d of %d method files failed analysis", out.Failed, out.Checked)
	}
	if opts.strict && out.Wonky > 0 {
		return fmt.Errorf("%d of %d method files have wonky frames", out.Wonky, out.Checked)
	}
	return nil
}

// checkFile analyzes one file, consulting the results cache first. Failures
// are recorded in the result.
func checkFile(e *env, results *cache.LRU[FileResult], f scanner.FileInfo, fingerprint string, noCache bool) FileResult {
	data, err := os.ReadFile(f.FullPath)
	if err != nil {
		return FileResult{Path: f.Path, Error: err.Error(), Offset: -1}
	}

	key := f.Path + "@" + contentKey(fingerprint, data)
	if !noCache {
		if res, ok := results.Get(key); ok {
			e.logger.Debug("check cache hit", "path", f.Path)
			res.Path = f.Path
			res.Cached = true
			return res
		}
	}

	res := FileResult{Path: f.Path, Offset: -1}
	m, err := types.DecodeMethod(data)
	if err != nil {
		res.Error = err.Error()
	} else if a, err := e.analyzer.Analyze(m); err != nil {
		res.Error = err.Error()
		if ae, ok := types.AsAnalysisError(err); ok {
			res.Offset = ae.Offset
		}
	} else {
		s := a.Summary()
		res.Summary = &s
	}
	if res.Error != "" {
		e.logger.Debug("analysis failed", "path", f.Path, "error", res.Error)
	}

	if !noCache {
		results.Set(key, res)
	}
	return res
}

// cacheFilePath resolves a relative cache directory against base.
func cacheFilePath(dir, base string) string {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	return filepath.Join(dir, checkCacheFile)
}

// hierarchyFingerprint digests everything besides file content that changes
// analysis results.
func hierarchyFingerprint(e *env) (string, error) {
	data, err := msgpack.Marshal(struct {
		Classes   any
		MaxVisits int
	}{e.classes.Classes(), e.cfg.MaxVisitsPerBlock})
	if err != nil {
		return "", fmt.Errorf("fingerprinting class hierarchy: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func contentKey(fingerprint string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// printCheck prints check results in human-readable format.
func printCheck(w io.Writer, out CheckOutput) {
	for _, r := range out.Files {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "FAIL   %s: %s\n", r.Path, r.Error)
		case r.Wonky():
			fmt.Fprintf(w, "WONKY  %s (%d blocks, %d wonky frames)\n", r.Path, r.Summary.Blocks, len(r.Summary.Wonky))
			for _, d := range r.Summary.Wonky {
				fmt.Fprintf(w, "         offset %d line %d %s: %s\n", d.Offset, d.Line, d.Instruction, d.Reason)
			}
		default:
			fmt.Fprintf(w, "ok     %s (%d blocks, complexity %d)\n", r.Path, r.Summary.Blocks, r.Summary.Complexity)
		}
	}
	ok := out.Checked - out.Failed - out.Wonky
	fmt.Fprintf(w, "\nChecked %d files: %d ok, %d wonky, %d failed (%d cached)\n",
		out.Checked, ok, out.Wonky, out.Failed, out.CacheHits)
}

func init() {
	checkCmd.Flags().Bool("strict", false, "Fail when any frame is wonky")
	checkCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	checkCmd.Flags().Bool("no-cache", false, "Ignore and do not update the results cache")
	RootCmd.AddCommand(checkCmd)
}

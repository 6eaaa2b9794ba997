// Package artifacts keeps uploaded datasets and the plot images of each report on disk.
package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/KaramelBytes/edaloom/internal/utils"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown reports or files.
	ErrNotFound = errors.New("artifact not found")
	// ErrBadName is returned for file names that cannot be stored safely.
	ErrBadName = errors.New("invalid file name")
)

// Store owns a root directory holding one sub-directory per report.
type Store struct {
	root string
	keep int
	mu   sync.Mutex
}

// NewStore creates root if needed. keep is the number of report directories
// Prune retains; zero or less disables pruning.
func NewStore(root string, keep int) (*Store, error) {
	if err := utils.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	return &Store{root: root, keep: keep}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Report is a directory of rendered charts.
type Report struct {
	ID  string
	dir string
}

// NewReport allocates a fresh report directory named by a random UUID.
func (s *Store) NewReport() (*Report, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Report{ID: id, dir: dir}, nil
}

// OpenDir uses an arbitrary directory as a report, creating it if needed.
func OpenDir(dir string) (*Report, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Report{dir: dir}, nil
}

// Dir returns the report directory.
func (r *Report) Dir() string { return r.dir }

// Create returns a writer whose content appears under name only once closed.
func (r *Report) Create(name string) (*utils.AtomicFile, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return utils.CreateAtomic(filepath.Join(r.dir, name))
}

// Put renders into name. Nothing is left on disk when render fails.
func (r *Report) Put(name string, render func(w io.Writer) error) error {
	f, err := r.Create(name)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Abort()
		return err
	}
	return f.Close()
}

// Files lists the PNG files of the report in lexical order.
func (r *Report) Files() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list report: %w", err)
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.Type().IsRegular() && !strings.HasPrefix(n, ".") && strings.EqualFold(filepath.Ext(n), ".png") {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Open returns a stored chart. id must be a report UUID and name a plain PNG file name.
func (s *Store) Open(id, name string) (*os.File, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if !validName(name) || !strings.EqualFold(filepath.Ext(name), ".png") {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.root, id, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// Prune removes the oldest report directories beyond the retention limit.
// keepID is never removed. It returns the number of directories deleted.
func (s *Store) Prune(keepID string) (int, error) {
	if s.keep <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("list plot dir: %w", err)
	}
	type dirInfo struct {
		name string
		mod  int64
	}
	var dirs []dirInfo
	for _, e := range entries {
		if !e.IsDir() || e.Name() == keepID {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, dirInfo{name: e.Name(), mod: info.ModTime().UnixNano()})
	}
	// newest first
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].mod != dirs[j].mod {
			return dirs[i].mod > dirs[j].mod
		}
		return dirs[i].name < dirs[j].name
	})
	retain := s.keep
	if keepID != "" {
		retain--
	}
	removed := 0
	for i, d := range dirs {
		if i < retain {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, d.name)); err != nil {
			return removed, fmt.Errorf("remove report %s: %w", d.name, err)
		}
		removed++
	}
	return removed, nil
}

// SaveUpload writes data to dir under the base name of filename, replacing
// any previous upload with that name. It returns the written path.
func SaveUpload(dir, filename string, data []byte) (string, error) {
	// browsers on Windows may send the full client path
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if !validName(base) {
		return "", fmt.Errorf("%w: %q", ErrBadName, filename)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	p := filepath.Join(dir, base)
	if err := utils.SafeWriteFile(p, data); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return p, nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

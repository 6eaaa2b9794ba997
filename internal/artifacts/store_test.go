package artifacts

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(w io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestReportPutAndFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "plots")
	s, err := NewStore(root, 5)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())
	r, err := s.NewReport()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, r.ID), r.Dir())

	require.NoError(t, r.Put("b_hist.png", writeString("png-b")))
	require.NoError(t, r.Put("a_bar.png", writeString("png-a")))
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), "notes.txt"), []byte("x"), 0o644))

	files, err := r.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a_bar.png", "b_hist.png"}, files)

	f, err := s.Open(r.ID, "a_bar.png")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png-a", string(b))
}

func TestReportPutFailureLeavesNothing(t *testing.T) {
	r, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	boom := errors.New("boom")
	err = r.Put("x_hist.png", func(w io.Writer) error {
		_, _ = io.WriteString(w, "half")
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReportRejectsBadNames(t *testing.T) {
	r, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"", "..", "../x.png", "a/b.png", ".hidden.png"} {
		_, err := r.Create(name)
		assert.ErrorIs(t, err, ErrBadName, name)
	}
}

func TestOpenValidatesPath(t *testing.T) {
	s, err := NewStore(t.TempDir(), 5)
	require.NoError(t, err)
	r, err := s.NewReport()
	require.NoError(t, err)
	require.NoError(t, r.Put("a.png", writeString("x")))

	cases := []struct{ id, name string }{
		{"not-a-uuid", "a.png"},
		{"..", "a.png"},
		{r.ID, "../a.png"},
		{r.ID, "missing.png"},
		{r.ID, "a.txt"},
	}
	for _, c := range cases {
		_, err := s.Open(c.id, c.name)
		assert.ErrorIs(t, err, ErrNotFound, "%s/%s", c.id, c.name)
	}
}

func TestReportsAreIsolated(t *testing.T) {
	s, err := NewStore(t.TempDir(), 5)
	require.NoError(t, err)
	r1, err := s.NewReport()
	require.NoError(t, err)
	r2, err := s.NewReport()
	require.NoError(t, err)
	require.NotEqual(t, r1.ID, r2.ID)

	require.NoError(t, r1.Put("x_hist.png", writeString("one")))
	require.NoError(t, r2.Put("y_bar.png", writeString("two")))

	f1, _ := r1.Files()
	f2, _ := r2.Files()
	assert.Equal(t, []string{"x_hist.png"}, f1)
	assert.Equal(t, []string{"y_bar.png"}, f2)
}

func TestPruneKeepsNewest(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root, 2)
	require.NoError(t, err)

	var ids []string
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		r, err := s.NewReport()
		require.NoError(t, err)
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(r.Dir(), ts, ts))
		ids = append(ids, r.ID)
	}
	// an unrelated directory is never touched
	require.NoError(t, os.Mkdir(filepath.Join(root, "keepme"), 0o755))

	// ids[0] is the oldest but is the report being served
	removed, err := s.Prune(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for i, want := range []bool{true, false, false, true} {
		_, err := os.Stat(filepath.Join(root, ids[i]))
		assert.Equal(t, want, err == nil, "report %d", i)
	}
	_, err = os.Stat(filepath.Join(root, "keepme"))
	assert.NoError(t, err)
}

func TestPruneDisabled(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.NewReport()
		require.NoError(t, err)
	}
	removed, err := s.Prune("")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSaveUpload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	p, err := SaveUpload(dir, `C:\Users\me\sales.csv`, []byte("a\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sales.csv"), p)

	p, err = SaveUpload(dir, "../../sales.csv", []byte("a\n2\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sales.csv"), p)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "a\n2\n", string(b))

	_, err = SaveUpload(dir, "..", []byte("x"))
	assert.ErrorIs(t, err, ErrBadName)
}

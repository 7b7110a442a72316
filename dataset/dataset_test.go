package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	b := Builtin()
	require.NotZero(t, b.Len())
	for i := 0; i < b.Len(); i++ {
		q, err := b.Get(i)
		require.NoError(t, err)
		require.NotEmpty(t, q)
	}
	_, err := b.Get(b.Len())
	require.Error(t, err)
}

func TestPickWraps(t *testing.T) {
	s := Slice{{Text: "a"}, {Text: "b"}, {Text: "c", Author: "x"}}
	got, err := Pick(s, 4)
	require.NoError(t, err)
	require.Equal(t, "b", got)

	got, err = Pick(s, ^uint64(0))
	require.NoError(t, err)
	// 2^64-1 mod 3 == 0
	require.Equal(t, "a", got)

	got, err = Pick(s, 2)
	require.NoError(t, err)
	require.Equal(t, "c — x", got)

	_, err = Pick(Slice{}, 1)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	require.Zero(t, store.Len())
	_, err = Pick(store, 0)
	require.ErrorIs(t, err, ErrEmpty)

	idx, err := store.Append(Quote{Text: "first", Author: "me"})
	require.NoError(t, err)
	require.Zero(t, idx)

	total, err := store.Import([]Quote{{Text: "second"}, {Text: "third"}})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, 3, store.Len())

	require.NoError(t, store.Put(1, Quote{Text: "replaced"}))
	require.NoError(t, store.Put(3, Quote{Text: "fourth"}))
	require.Error(t, store.Put(9, Quote{Text: "gap"}))
	require.Equal(t, 4, store.Len())

	q, err := store.Quote(0)
	require.NoError(t, err)
	require.Equal(t, Quote{Text: "first", Author: "me"}, q)

	got, err := Pick(store, 5)
	require.NoError(t, err)
	require.Equal(t, "replaced", got)

	_, err = store.Get(10)
	require.Error(t, err)
}

func TestBadgerStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	_, err = store.Import(Builtin())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenBadgerStore(dir)
	require.NoError(t, err)
	defer store.Close()
	require.Equal(t, Builtin().Len(), store.Len())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "quotes.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[[quote]]
text = "Stay hungry, stay foolish."
author = "Stewart Brand"

[[quote]]
text = "   "
`), 0o644))
	quotes, err := LoadFile(tomlPath)
	require.NoError(t, err)
	require.Equal(t, Slice{{Text: "Stay hungry, stay foolish.", Author: "Stewart Brand"}}, quotes)

	yamlPath := filepath.Join(dir, "quotes.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
quotes:
  - text: "Less is more."
  - text: "Well begun is half done."
    author: Aristotle
`), 0o644))
	quotes, err = LoadFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.Equal(t, "Aristotle", quotes[1].Author)

	emptyPath := filepath.Join(dir, "empty.yml")
	require.NoError(t, os.WriteFile(emptyPath, []byte("quotes: []\n"), 0o644))
	_, err = LoadFile(emptyPath)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = LoadFile(filepath.Join(dir, "quotes.json"))
	require.Error(t, err)
}

package dataset

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// quoteFile is the on-disk layout accepted by LoadFile.
//
//	TOML:  [[quote]]            YAML:  quotes:
//	       text = "..."                  - text: "..."
//	       author = "..."                  author: "..."
type quoteFile struct {
	Quotes []Quote `toml:"quote" yaml:"quotes"`
}

// LoadFile reads quotes from a .toml, .yaml or .yml file. Entries with empty
// text are skipped.
func LoadFile(path string) (Slice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("cannot read %s: %w", path, err)
	}

	var f quoteFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, xerrors.Errorf("dataset: unsupported quote file extension %q", ext)
	}
	if err != nil {
		return nil, xerrors.Errorf("parse error in %s: %w", path, err)
	}

	out := make(Slice, 0, len(f.Quotes))
	for _, q := range f.Quotes {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, xerrors.Errorf("%s: %w", path, ErrEmpty)
	}
	return out, nil
}

package dataset

import (
	"path/filepath"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/xerrors"
)

var countKey = []byte("quotes:count")

func quoteKey(i int) []byte {
	return []byte("quote:" + strconv.Itoa(i))
}

// BadgerStore keeps quotes on disk. Quotes are msgpack-encoded under
// "quote:<index>" and the number of quotes under "quotes:count". It
// implements Collection.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store under dataDir/badger.
func OpenBadgerStore(dataDir string) (*BadgerStore, error) {
	dbPath := filepath.Join(dataDir, "badger")
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, xerrors.Errorf("dataset: open %s: %w", dbPath, err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, xerrors.Errorf("dataset: open in-memory store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Append stores q after the last quote and returns its index.
func (s *BadgerStore) Append(q Quote) (int, error) {
	var idx int
	err := s.db.Update(func(txn *badger.Txn) error {
		n, err := countIn(txn)
		if err != nil {
			return err
		}
		idx = n
		return putIn(txn, n, q, n+1)
	})
	return idx, err
}

// Put overwrites the quote at index i, growing the store if i is the next
// free slot.
func (s *BadgerStore) Put(i int, q Quote) error {
	return s.db.Update(func(txn *badger.Txn) error {
		n, err := countIn(txn)
		if err != nil {
			return err
		}
		if i < 0 || i > n {
			return xerrors.Errorf("dataset: put index %d out of range [0,%d]", i, n)
		}
		if i == n {
			n++
		}
		return putIn(txn, i, q, n)
	})
}

// Import appends all quotes in a single transaction and returns the new
// total.
func (s *BadgerStore) Import(quotes []Quote) (int, error) {
	var total int
	err := s.db.Update(func(txn *badger.Txn) error {
		n, err := countIn(txn)
		if err != nil {
			return err
		}
		for _, q := range quotes {
			if err := putIn(txn, n, q, n+1); err != nil {
				return err
			}
			n++
		}
		total = n
		return nil
	})
	return total, err
}

// Quote returns the raw entry at index i.
func (s *BadgerStore) Quote(i int) (Quote, error) {
	var q Quote
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(quoteKey(i))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &q)
		})
	})
	if err != nil {
		return Quote{}, xerrors.Errorf("dataset: quote %d: %w", i, err)
	}
	return q, nil
}

// Get implements Collection.
func (s *BadgerStore) Get(i int) (string, error) {
	q, err := s.Quote(i)
	if err != nil {
		return "", err
	}
	return q.String(), nil
}

// Len implements Collection. A read failure counts as empty.
func (s *BadgerStore) Len() int {
	var n int
	err := s.db.View(func(txn *badger.Txn) (err error) {
		n, err = countIn(txn)
		return err
	})
	if err != nil {
		return 0
	}
	return n
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func countIn(txn *badger.Txn) (int, error) {
	item, err := txn.Get(countKey)
	if xerrors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int
	err = item.Value(func(val []byte) error {
		v, err := strconv.Atoi(string(val))
		n = v
		return err
	})
	return n, err
}

func putIn(txn *badger.Txn, i int, q Quote, count int) error {
	val, err := msgpack.Marshal(&q)
	if err != nil {
		return err
	}
	if err := txn.Set(quoteKey(i), val); err != nil {
		return err
	}
	return txn.Set(countKey, []byte(strconv.Itoa(count)))
}

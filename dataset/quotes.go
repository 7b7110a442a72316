// Package dataset provides the quote collections served behind the puzzle.
package dataset

import (
	"golang.org/x/xerrors"
)

// Collection is an ordered, non-empty set of quotes addressed by index.
type Collection interface {
	Len() int
	Get(i int) (string, error)
}

// Quote is one stored entry.
type Quote struct {
	Text   string `msgpack:"text" yaml:"text" toml:"text"`
	Author string `msgpack:"author,omitempty" yaml:"author" toml:"author"`
}

// String renders the quote the way it is sent to clients.
func (q Quote) String() string {
	if q.Author == "" {
		return q.Text
	}
	return q.Text + " — " + q.Author
}

// ErrEmpty is returned when a collection has no quotes to serve.
var ErrEmpty = xerrors.New("dataset: empty quote collection")

// Slice is an in-memory Collection.
type Slice []Quote

func (s Slice) Len() int { return len(s) }

func (s Slice) Get(i int) (string, error) {
	if i < 0 || i >= len(s) {
		return "", xerrors.Errorf("dataset: index %d out of range [0,%d)", i, len(s))
	}
	return s[i].String(), nil
}

// Pick maps an arbitrary requested number onto the collection.
func Pick(c Collection, n uint64) (string, error) {
	size := c.Len()
	if size <= 0 {
		return "", ErrEmpty
	}
	return c.Get(int(n % uint64(size)))
}

var builtin = Slice{
	{Text: "The only true wisdom is in knowing you know nothing.", Author: "Socrates"},
	{Text: "Knowing yourself is the beginning of all wisdom.", Author: "Aristotle"},
	{Text: "It is the mark of an educated mind to be able to entertain a thought without accepting it.", Author: "Aristotle"},
	{Text: "The journey of a thousand miles begins with one step.", Author: "Lao Tzu"},
	{Text: "He who knows others is wise; he who knows himself is enlightened.", Author: "Lao Tzu"},
	{Text: "We are what we repeatedly do. Excellence, then, is not an act, but a habit.", Author: "Will Durant"},
	{Text: "The unexamined life is not worth living.", Author: "Socrates"},
	{Text: "Waste no more time arguing about what a good man should be. Be one.", Author: "Marcus Aurelius"},
	{Text: "You have power over your mind, not outside events. Realize this, and you will find strength.", Author: "Marcus Aurelius"},
	{Text: "It is not that we have a short time to live, but that we waste a lot of it.", Author: "Seneca"},
	{Text: "Luck is what happens when preparation meets opportunity.", Author: "Seneca"},
	{Text: "Wealth consists not in having great possessions, but in having few wants.", Author: "Epictetus"},
	{Text: "No man ever steps in the same river twice.", Author: "Heraclitus"},
	{Text: "Patience is bitter, but its fruit is sweet.", Author: "Jean-Jacques Rousseau"},
	{Text: "The more I learn, the more I realize how much I don't know.", Author: "Albert Einstein"},
	{Text: "Turn your wounds into wisdom.", Author: "Oprah Winfrey"},
	{Text: "A fool thinks himself to be wise, but a wise man knows himself to be a fool.", Author: "William Shakespeare"},
	{Text: "Do not go where the path may lead, go instead where there is no path and leave a trail.", Author: "Ralph Waldo Emerson"},
	{Text: "In the middle of difficulty lies opportunity.", Author: "Albert Einstein"},
	{Text: "Simplicity is the ultimate sophistication.", Author: "Leonardo da Vinci"},
}

// Builtin returns the quotes compiled into the binary.
func Builtin() Slice {
	return append(Slice(nil), builtin...)
}

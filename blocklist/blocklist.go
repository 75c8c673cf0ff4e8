// Package blocklist loads and applies the channel and title exclusion lists.
//
// Both lists are newline-delimited text files. Channel lines are matched
// exactly against a channel's display title. Title lines are matched as
// case-insensitive substrings of a video title; lines starting with "//" are
// comments.
package blocklist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// CommentPrefix marks comment lines in the title blocklist.
const CommentPrefix = "//"

// Blocklists holds the exclusion sets for one run. A nil *Blocklists blocks
// nothing. The lists are never mutated after construction.
type Blocklists struct {
	channels map[string]struct{}
	titles   []string // case-folded substrings
	folder   cases.Caser
}

// New builds blocklists from in-memory lists. Blank entries are dropped.
func New(channels, titles []string) *Blocklists {
	b := &Blocklists{
		channels: make(map[string]struct{}, len(channels)),
		folder:   cases.Fold(),
	}
	for _, c := range channels {
		if c = strings.TrimSpace(c); c != "" {
			b.channels[c] = struct{}{}
		}
	}
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			b.titles = append(b.titles, b.fold(t))
		}
	}
	return b
}

// Load reads the channel and title blocklist files. An empty path yields an
// empty list; a path that does not exist is an error.
func Load(channelsPath, titlesPath string) (*Blocklists, error) {
	channels, err := readFile(channelsPath, ReadChannels)
	if err != nil {
		return nil, fmt.Errorf("channel blocklist: %w", err)
	}
	titles, err := readFile(titlesPath, ReadTitles)
	if err != nil {
		return nil, fmt.Errorf("title blocklist: %w", err)
	}
	return New(channels, titles), nil
}

func readFile(path string, read func(io.Reader) ([]string, error)) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ReadChannels parses a channel blocklist: one display title per line.
func ReadChannels(r io.Reader) ([]string, error) {
	return readLines(r, false)
}

// ReadTitles parses a title blocklist: one substring per line, "//" comments.
func ReadTitles(r io.Reader) ([]string, error) {
	return readLines(r, true)
}

func readLines(r io.Reader, comments bool) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if comments && strings.HasPrefix(line, CommentPrefix) {
			continue
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BlocksChannel reports whether title exactly matches a blocklisted channel.
func (b *Blocklists) BlocksChannel(title string) bool {
	if b == nil {
		return false
	}
	_, ok := b.channels[title]
	return ok
}

// BlocksTitle reports whether a blocklisted substring occurs in title,
// ignoring case.
func (b *Blocklists) BlocksTitle(title string) bool {
	_, ok := b.MatchTitle(title)
	return ok
}

// MatchTitle returns the first blocklisted substring found in title.
func (b *Blocklists) MatchTitle(title string) (string, bool) {
	if b == nil || len(b.titles) == 0 {
		return "", false
	}
	folded := b.fold(title)
	for _, sub := range b.titles {
		if strings.Contains(folded, sub) {
			return sub, true
		}
	}
	return "", false
}

// Channels returns the blocklisted channel titles, sorted.
func (b *Blocklists) Channels() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.channels))
	for c := range b.channels {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Len returns the sizes of the channel and title lists.
func (b *Blocklists) Len() (channels, titles int) {
	if b == nil {
		return 0, 0
	}
	return len(b.channels), len(b.titles)
}

// fold case-folds s. The Caser is stateful, which limits a Blocklists to one
// goroutine at a time.
func (b *Blocklists) fold(s string) string {
	return b.folder.String(s)
}

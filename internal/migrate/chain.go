package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/shinji-kodama/quizctl/internal/model"
)

// Chain is the ordered list of revisions, base first.
type Chain []*Revision

// Head returns the newest revision, or nil for an empty chain.
func (c Chain) Head() *Revision {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Index returns the position of the revision with the given id, or -1.
func (c Chain) Index(id string) int {
	for i, rev := range c {
		if rev.ID == id {
			return i
		}
	}
	return -1
}

// Resolve maps a target to a chain position. "head" is the last revision,
// "base" is -1 (before the first), and anything else is a revision id or
// an unambiguous prefix of one.
func (c Chain) Resolve(target string) (int, error) {
	switch target {
	case model.TargetHead, "":
		return len(c) - 1, nil
	case model.TargetBase:
		return -1, nil
	}

	match := -1
	for i, rev := range c {
		if rev.ID == target {
			return i, nil
		}
		if strings.HasPrefix(rev.ID, target) {
			if match != -1 {
				return 0, fmt.Errorf("revision %q is ambiguous", target)
			}
			match = i
		}
	}
	if match == -1 {
		return 0, fmt.Errorf("can't locate revision identified by %q", target)
	}
	return match, nil
}

// LoadChain reads every *.sql file at the root of fsys and orders them by
// their Revises headers. A missing directory yields an empty chain.
func LoadChain(fsys fs.FS) (Chain, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var revisions []*Revision
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read revision %s: %w", entry.Name(), err)
		}
		rev, err := ParseRevision(entry.Name(), content)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return BuildChain(revisions)
}

// BuildChain orders revisions from base to head. It rejects duplicate ids,
// unknown parents, branches and multiple bases.
func BuildChain(revisions []*Revision) (Chain, error) {
	if len(revisions) == 0 {
		return nil, nil
	}

	byID := make(map[string]*Revision, len(revisions))
	children := make(map[string][]*Revision, len(revisions))
	for _, rev := range revisions {
		if other, dup := byID[rev.ID]; dup {
			return nil, fmt.Errorf("duplicate revision %s in %s and %s", rev.ID, other.File, rev.File)
		}
		byID[rev.ID] = rev
	}

	for _, rev := range revisions {
		if rev.Parent != "" {
			if _, ok := byID[rev.Parent]; !ok {
				return nil, fmt.Errorf("revision %s revises unknown revision %s", rev.ID, rev.Parent)
			}
		}
		children[rev.Parent] = append(children[rev.Parent], rev)
	}

	for parent, kids := range children {
		if len(kids) < 2 {
			continue
		}
		ids := make([]string, len(kids))
		for i, k := range kids {
			ids[i] = k.ID
		}
		sort.Strings(ids)
		if parent == "" {
			return nil, fmt.Errorf("multiple base revisions: %s", strings.Join(ids, ", "))
		}
		return nil, fmt.Errorf("multiple heads: revisions %s all revise %s", strings.Join(ids, ", "), parent)
	}

	roots := children[""]
	if len(roots) == 0 {
		return nil, errors.New("no base revision: every revision revises another")
	}

	chain := make(Chain, 0, len(revisions))
	for cur := roots[0]; cur != nil; {
		chain = append(chain, cur)
		next := children[cur.ID]
		if len(next) == 0 {
			break
		}
		cur = next[0]
	}

	if len(chain) != len(revisions) {
		return nil, fmt.Errorf("revision chain is broken: %d of %d revisions reachable from base", len(chain), len(revisions))
	}
	return chain, nil
}

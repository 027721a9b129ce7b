package zfs

import (
	"context"
	"fmt"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// BookmarkRequest names one bookmark to create and the snapshot it
// preserves.
type BookmarkRequest struct {
	// Bookmark is the fully qualified bookmark name ("fs#mark").
	Bookmark string

	// Source is the snapshot the bookmark preserves ("fs@snap"). It must
	// belong to the same filesystem as the bookmark.
	Source string
}

// Bookmark atomically creates the requested bookmarks. Every bookmark
// is created or none are. Requesting the same bookmark twice from the
// same source collapses to one target; requesting it from two different
// sources is a fault.
func (c *Client) Bookmark(ctx context.Context, reqs []BookmarkRequest) error {
	if len(reqs) == 0 {
		return zerrors.NewNameInvalidError(string(engine.OpBookmark), "", "empty target set")
	}

	set := NewTargetSet()
	sources := make(map[string]string, len(reqs))
	input := nvlist.New()
	for _, r := range reqs {
		if err := validateName(engine.OpBookmark, r.Bookmark, flavorBookmark); err != nil {
			return err
		}
		if err := validateName(engine.OpBookmark, r.Source, flavorSnapshot); err != nil {
			return err
		}
		if prev, dup := sources[r.Bookmark]; dup {
			if prev == r.Source {
				continue
			}
			return zerrors.NewNameInvalidError(string(engine.OpBookmark), r.Bookmark,
				fmt.Sprintf("requested from both %q and %q", prev, r.Source))
		}
		sources[r.Bookmark] = r.Source
		set.Add(r.Bookmark)
		_ = input.AddString(r.Bookmark, r.Source)
	}

	_, err := c.run(ctx, engine.OpBookmark, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpBookmark, set.Pool(), input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return classifyBatch(engine.OpBookmark, status, reply, bookmarkProfile(set))
	})
	return err
}

// DestroyBookmarks removes the named bookmarks. Bookmarks that do not
// exist are soft misses, returned in engine order alongside a nil
// error.
func (c *Client) DestroyBookmarks(ctx context.Context, bookmarks []string) ([]string, error) {
	set, err := newValidatedSet(engine.OpDestroyBookmarks, bookmarks, flavorBookmark)
	if err != nil {
		return nil, err
	}

	input := nameFlags(set.Names())

	return c.run(ctx, engine.OpDestroyBookmarks, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpDestroyBookmarks, set.Pool(), input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return classifyBatch(engine.OpDestroyBookmarks, status, reply, destroyBookmarksProfile(set))
	})
}

// GetBookmarks returns the bookmarks of the filesystem keyed by their
// short name, each carrying the requested numeric properties
// ("guid", "createtxg", "creation").
func (c *Client) GetBookmarks(ctx context.Context, fs string, props []string) (map[string]map[string]uint64, error) {
	if err := validateName(engine.OpGetBookmarks, fs, flavorFilesystem); err != nil {
		return nil, err
	}

	var input *nvlist.List
	if len(props) > 0 {
		input = nameFlags(props)
	}

	set := NewTargetSet(fs)
	var result map[string]map[string]uint64
	_, err := c.run(ctx, engine.OpGetBookmarks, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpGetBookmarks, fs, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		if status != 0 {
			return nil, classifySingle(engine.OpGetBookmarks, fs, status, notFoundKind)
		}
		result, cerr = decodeBookmarks(reply)
		return nil, cerr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decodeBookmarks flattens the reply: one embedded List per bookmark,
// each pair a numeric property.
func decodeBookmarks(reply *nvlist.List) (map[string]map[string]uint64, error) {
	if reply == nil {
		return map[string]map[string]uint64{}, nil
	}
	result := make(map[string]map[string]uint64, reply.Len())
	for _, p := range reply.Pairs() {
		sub, ok := p.Value.(*nvlist.List)
		if !ok {
			return nil, zerrors.NewInternalError(string(engine.OpGetBookmarks),
				fmt.Sprintf("reply entry %q has type %s, want an embedded List", p.Name, p.Type), nil)
		}
		bookmarkProps := make(map[string]uint64, sub.Len())
		for _, pp := range sub.Pairs() {
			v, ok := pp.Value.(uint64)
			if !ok {
				return nil, zerrors.NewInternalError(string(engine.OpGetBookmarks),
					fmt.Sprintf("property %q of bookmark %q has type %s, want uint64", pp.Name, p.Name, pp.Type), nil)
			}
			bookmarkProps[pp.Name] = v
		}
		result[p.Name] = bookmarkProps
	}
	return result, nil
}

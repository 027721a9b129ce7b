package zfs

import (
	"fmt"
	"strings"

	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// MaxNameLen is the engine's limit on a full dataset name, including any
// snapshot or bookmark suffix and the terminating NUL it reserves.
const MaxNameLen = 256

// nameFlavor selects which delimiter a validated name must carry.
type nameFlavor int

const (
	flavorFilesystem nameFlavor = iota // no @ or #
	flavorSnapshot                     // exactly one @
	flavorBookmark                     // exactly one #
	flavorAny                          // filesystem, snapshot or bookmark
)

func (f nameFlavor) String() string {
	switch f {
	case flavorFilesystem:
		return "filesystem"
	case flavorSnapshot:
		return "snapshot"
	case flavorBookmark:
		return "bookmark"
	default:
		return "dataset"
	}
}

// PoolName returns the pool component of a dataset name: everything up to
// the first '/', '@' or '#'.
func PoolName(name string) string {
	if i := strings.IndexAny(name, "/@#"); i >= 0 {
		return name[:i]
	}
	return name
}

// SplitSnapshot splits "fs@snap" into its filesystem and snapshot parts.
func SplitSnapshot(name string) (fs, snap string, ok bool) {
	i := strings.IndexByte(name, '@')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// SplitBookmark splits "fs#mark" into its filesystem and bookmark parts.
func SplitBookmark(name string) (fs, mark string, ok bool) {
	i := strings.IndexByte(name, '#')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// validateName checks one full dataset name against the engine's naming
// rules before it crosses the boundary, so malformed names fail fast with
// a precise kind instead of a coarse engine status.
func validateName(op engine.Op, name string, flavor nameFlavor) error {
	if name == "" {
		return zerrors.NewNameInvalidError(string(op), name, "empty name")
	}
	if len(name) >= MaxNameLen {
		return zerrors.NewNameTooLongError(string(op), name)
	}

	at := strings.Count(name, "@")
	hash := strings.Count(name, "#")
	if at > 1 || hash > 1 || (at == 1 && hash == 1) {
		return zerrors.NewNameInvalidError(string(op), name, "more than one '@' or '#' delimiter")
	}

	switch flavor {
	case flavorFilesystem:
		if at != 0 || hash != 0 {
			return zerrors.NewNameInvalidError(string(op), name,
				fmt.Sprintf("expected a filesystem name, got a %s", suffixFlavor(at, hash)))
		}
	case flavorSnapshot:
		if at != 1 {
			return zerrors.NewNameInvalidError(string(op), name, "expected a snapshot name (fs@snap)")
		}
	case flavorBookmark:
		if hash != 1 {
			return zerrors.NewNameInvalidError(string(op), name, "expected a bookmark name (fs#mark)")
		}
	}

	base := name
	var suffix string
	if i := strings.IndexAny(name, "@#"); i >= 0 {
		base, suffix = name[:i], name[i+1:]
		if suffix == "" {
			return zerrors.NewNameInvalidError(string(op), name, "empty snapshot or bookmark component")
		}
		if !validComponent(suffix) {
			return zerrors.NewNameInvalidError(string(op), name,
				fmt.Sprintf("invalid character in component %q", suffix))
		}
	}

	if strings.HasPrefix(base, "/") || strings.HasSuffix(base, "/") {
		return zerrors.NewNameInvalidError(string(op), name, "leading or trailing '/'")
	}
	for _, comp := range strings.Split(base, "/") {
		if comp == "" {
			return zerrors.NewNameInvalidError(string(op), name, "empty path component")
		}
		if !validComponent(comp) {
			return zerrors.NewNameInvalidError(string(op), name,
				fmt.Sprintf("invalid character in component %q", comp))
		}
	}

	// Pool names additionally must start with a letter.
	pool := PoolName(name)
	if c := pool[0]; !isLetter(c) {
		return zerrors.NewNameInvalidError(string(op), name, "pool name must start with a letter")
	}

	return nil
}

// validateTag checks a hold tag. Tags share the component charset and
// count against the name limit when qualified as fs@snap#tag.
func validateTag(op engine.Op, snapshot, tag string) error {
	if tag == "" {
		return zerrors.NewNameInvalidError(string(op), snapshot, "empty hold tag")
	}
	if !validComponent(tag) {
		return zerrors.NewNameInvalidError(string(op), snapshot,
			fmt.Sprintf("invalid character in hold tag %q", tag))
	}
	if len(snapshot)+1+len(tag) >= MaxNameLen {
		return zerrors.NewNameTooLongError(string(op), snapshot+"#"+tag)
	}
	return nil
}

func validComponent(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isLetter(c), c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':' || c == ' ':
		default:
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func suffixFlavor(at, hash int) string {
	if at == 1 {
		return "snapshot"
	}
	if hash == 1 {
		return "bookmark"
	}
	return "dataset"
}

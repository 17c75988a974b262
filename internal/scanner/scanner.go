// Package scanner discovers and classifies files in an export tree.
//
// The walk is read-only and builds an explicit Result; nothing is
// accumulated in package-level state. Classification is a best-effort
// path heuristic applied in a fixed precedence order: HTML extension,
// then the message-thread path pattern, then the posts/comments/reactions
// path substrings. Files matching none of the rules are ignored.
package scanner

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

// messagePathRe matches message-thread files such as
// messages/inbox/<thread>/message_1.json and archived_threads variants.
var messagePathRe = regexp.MustCompile(`(?:^|/)(?:inbox|archived_threads)/[^/]+/message_\d+\.json$`)

// Result holds the classified file lists plus aggregate statistics.
// Paths are absolute; TotalFiles and TotalBytes cover every regular file
// seen during the walk, classified or not.
type Result struct {
	Messages  []string
	Posts     []string
	Comments  []string
	Reactions []string
	HTML      []string

	TotalFiles int
	TotalBytes int64
}

// Scan walks the export root and classifies every file.
//
// Symbolic links are not followed, and dot-prefixed directories below the
// root are skipped entirely; export archives never place content in them.
// A file whose size cannot be stat'ed contributes zero bytes rather than
// aborting the scan.
func Scan(root string) (*Result, error) {
	result := &Result{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories hold no export content
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		result.TotalFiles++
		if info, err := d.Info(); err == nil {
			result.TotalBytes += info.Size()
		}

		switch Classify(path) {
		case KindMessages:
			result.Messages = append(result.Messages, path)
		case KindPosts:
			result.Posts = append(result.Posts, path)
		case KindComments:
			result.Comments = append(result.Comments, path)
		case KindReactions:
			result.Reactions = append(result.Reactions, path)
		case KindHTML:
			result.HTML = append(result.HTML, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Kind is the classification assigned to one export file.
type Kind int

const (
	KindIgnored Kind = iota
	KindMessages
	KindPosts
	KindComments
	KindReactions
	KindHTML
)

// Classify applies the classification rules to a single path.
// Precedence: HTML, message-thread pattern, posts, comments, reactions.
func Classify(path string) Kind {
	slashed := filepath.ToSlash(path)
	lower := strings.ToLower(slashed)

	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return KindHTML
	}
	if messagePathRe.MatchString(slashed) {
		return KindMessages
	}
	if !strings.HasSuffix(lower, ".json") {
		return KindIgnored
	}
	// Substring rules are heuristics; overlap resolves to the first match
	switch {
	case strings.Contains(lower, "posts"):
		return KindPosts
	case strings.Contains(lower, "comments"):
		return KindComments
	case strings.Contains(lower, "reactions"):
		return KindReactions
	}
	return KindIgnored
}

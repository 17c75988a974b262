package ingester

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/chatpack/chatpack/internal/identity"
	"github.com/chatpack/chatpack/pkg/types"
)

// millisThreshold separates second-resolution from millisecond-resolution
// timestamps. Values below it are treated as seconds and multiplied up.
const millisThreshold = 1e12

// Candidate field orders are part of the ID contract: changing an order
// changes every derived ID, so they are fixed here in priority order.
var (
	messageTimestampFields = []string{"timestamp_ms", "timestamp"}
	genericTimestampFields = []string{"timestamp", "timestamp_ms", "time", "created_timestamp", "date"}
	mediaArrayFields       = []string{"photos", "videos", "audio_files", "gifs", "files"}

	postTextFields    = []string{"data.0.post", "post", "text"}
	postPlaceFields   = []string{"place", "data.0.place"}
	commentAuthorF    = []string{"data.0.comment.author", "author"}
	commentTextFields = []string{"data.0.comment.comment", "comment", "text"}
	reactionActorF    = []string{"data.0.reaction.actor", "actor"}
	reactionLabelF    = []string{"data.0.reaction.reaction", "reaction"}
)

// Record-array candidate locations per category, probed in order.
// The empty string means the document root itself is the array.
var (
	postsArrayCandidates     = []string{"", "posts_v2", "posts", "wall_posts_v2"}
	commentsArrayCandidates  = []string{"", "comments_v2", "comments"}
	reactionsArrayCandidates = []string{"", "reactions_v2", "reactions", "likes_and_reactions"}
)

// coerceMillis normalizes a numeric timestamp to milliseconds since epoch.
// Values below the magnitude threshold are seconds; everything else is
// floored to an integer millisecond count.
func coerceMillis(v float64) int64 {
	if v < millisThreshold {
		return int64(v) * 1000
	}
	return int64(v)
}

// trimOrNil coerces a string to trimmed, non-empty-or-nil.
func trimOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// firstString returns the first present, non-empty trimmed string among
// the candidate paths. First present wins.
func firstString(rec gjson.Result, candidates []string) *string {
	for _, path := range candidates {
		v := rec.Get(path)
		if v.Exists() && v.Type == gjson.String {
			if s := trimOrNil(v.String()); s != nil {
				return s
			}
		}
	}
	return nil
}

// firstTimestamp returns the first present numeric timestamp among the
// candidate paths, coerced to milliseconds.
func firstTimestamp(rec gjson.Result, candidates []string) *int64 {
	for _, path := range candidates {
		v := rec.Get(path)
		if v.Exists() && v.Type == gjson.Number {
			ms := coerceMillis(v.Float())
			return &ms
		}
	}
	return nil
}

// rawOrNil keeps the serialized JSON of a value if present.
func rawOrNil(rec gjson.Result, path string) *string {
	v := rec.Get(path)
	if !v.Exists() {
		return nil
	}
	raw := v.Raw
	return &raw
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func msOrEmpty(ts *int64) string {
	if ts == nil {
		return ""
	}
	return strconv.FormatInt(*ts, 10)
}

// normalizeMessage builds a message row from one raw record.
// index is the record's position in the source file.
func normalizeMessage(threadID, relPath string, index int, raw []byte) *types.Message {
	rec := gjson.ParseBytes(raw)

	var ts int64
	if t := firstTimestamp(rec, messageTimestampFields); t != nil {
		ts = *t
	}

	sender := firstString(rec, []string{"sender_name"})
	text := firstString(rec, []string{"content"})

	msgType := "generic"
	if t := firstString(rec, []string{"type"}); t != nil {
		msgType = *t
	}

	// Only the first element of the first present media array is kept
	var media *string
	for _, field := range mediaArrayFields {
		arr := rec.Get(field)
		if arr.IsArray() {
			if uri := arr.Get("0.uri"); uri.Exists() {
				if s := trimOrNil(uri.String()); s != nil {
					media = s
				}
			}
			break
		}
	}

	var reacts *string
	if r := rec.Get("reactions"); r.IsArray() {
		raw := r.Raw
		reacts = &raw
	}

	return &types.Message{
		ID: identity.HashID(threadID, relPath, strconv.Itoa(index),
			strconv.FormatInt(ts, 10), strOrEmpty(sender), strOrEmpty(text)),
		ThreadID:      threadID,
		TimestampMs:   ts,
		SenderName:    sender,
		Text:          text,
		MessageType:   msgType,
		IsUnsent:      rec.Get("is_unsent").Type == gjson.True,
		MediaURI:      media,
		ReactionsJSON: reacts,
	}
}

// normalizePost builds a post row from one raw record.
func normalizePost(relPath string, index int, raw []byte) *types.Post {
	rec := gjson.ParseBytes(raw)

	ts := firstTimestamp(rec, genericTimestampFields)
	title := firstString(rec, []string{"title"})
	text := firstString(rec, postTextFields)

	var place *string
	for _, path := range postPlaceFields {
		if p := rawOrNil(rec, path); p != nil {
			place = p
			break
		}
	}

	return &types.Post{
		ID: identity.HashID(string(types.CategoryPosts), relPath, strconv.Itoa(index),
			msOrEmpty(ts), strOrEmpty(title), strOrEmpty(text)),
		TimestampMs:     ts,
		Title:           title,
		Text:            text,
		AttachmentsJSON: rawOrNil(rec, "attachments"),
		PlaceJSON:       place,
	}
}

// normalizeComment builds a comment row from one raw record.
func normalizeComment(relPath string, index int, raw []byte) *types.Comment {
	rec := gjson.ParseBytes(raw)

	ts := firstTimestamp(rec, genericTimestampFields)
	author := firstString(rec, commentAuthorF)
	text := firstString(rec, commentTextFields)

	return &types.Comment{
		ID: identity.HashID(string(types.CategoryComments), relPath, strconv.Itoa(index),
			msOrEmpty(ts), strOrEmpty(author), strOrEmpty(text)),
		TimestampMs: ts,
		Author:      author,
		Text:        text,
		Parent:      firstString(rec, []string{"title"}),
	}
}

// normalizeReaction builds a reaction row from one raw record.
func normalizeReaction(relPath string, index int, raw []byte) *types.Reaction {
	rec := gjson.ParseBytes(raw)

	ts := firstTimestamp(rec, genericTimestampFields)
	actor := firstString(rec, reactionActorF)
	label := firstString(rec, reactionLabelF)

	return &types.Reaction{
		ID: identity.HashID(string(types.CategoryReactions), relPath, strconv.Itoa(index),
			msOrEmpty(ts), strOrEmpty(actor), strOrEmpty(label)),
		TimestampMs: ts,
		Actor:       actor,
		Reaction:    label,
		Target:      firstString(rec, []string{"title"}),
	}
}

// threadIDFor derives the stable thread identifier from the thread's
// source-relative folder path.
func threadIDFor(relDir string) string {
	return identity.HashID("thread", relDir)
}

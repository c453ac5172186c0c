package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// emptyList matches both a null and a zero-length JSON array.
type emptyList struct{}

// omitRule drops member field from the encoded object when it equals value.
// On decode the same value is restored for absent members.
type omitRule struct {
	field string
	value any
}

type omitRules []omitRule

var fileOmit = omitRules{
	{"size_bytes", 0},
}

var commentOmit = omitRules{
	{"avatar", DefaultAvatar},
	{"class", DeletedSentinel},
	{"body", ""},
	{"comment_id", 0},
	{"posted_at", 0},
	{"username", DeletedSentinel},
}

var itemOmit = omitRules{
	{"description", ""},
	{"category", ""},
	{"type", ""},
	{"language", ""},
	{"total_size", 0},
	{"uploader", ""},
	{"download_count", 0},
	{"last_checked_at", 0},
	{"uploaded_at", 0},
	{"seeder_count", 0},
	{"leecher_count", 0},
	{"scraped_at", 0},
	{"external_movie_id", nil},
	{"external_series_id", nil},
	{"images", emptyList{}},
	{"trackers", emptyList{}},
	{"files", emptyList{}},
	{"comments", emptyList{}},
}

func (r omitRule) matches(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if _, ok := r.value.(emptyList); ok {
		return bytes.Equal(raw, jsonNull) || bytes.Equal(raw, []byte("[]")), nil
	}
	want, err := json.Marshal(r.value)
	if err != nil {
		return false, fmt.Errorf("encode omit value for %s: %w", r.field, err)
	}
	return bytes.Equal(raw, want), nil
}

func (rules omitRules) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, err
	}
	for _, rule := range rules {
		member, ok := members[rule.field]
		if !ok {
			continue
		}
		omit, err := rule.matches(member)
		if err != nil {
			return nil, err
		}
		if omit {
			delete(members, rule.field)
		}
	}
	return json.Marshal(members)
}

func (rules omitRules) decode(data []byte, v any) error {
	defaults := make(map[string]any, len(rules))
	for _, rule := range rules {
		if _, ok := rule.value.(emptyList); ok || rule.value == nil {
			continue
		}
		defaults[rule.field] = rule.value
	}
	seed, err := json.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	if err := json.Unmarshal(seed, v); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	return json.Unmarshal(data, v)
}

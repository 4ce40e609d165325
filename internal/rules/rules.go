// Package rules owns the provider rule file: the ordered mapping from
// provider key to the signatures, extraction pattern, and destination
// folder used to classify delivery notes. Declaration order in the file
// is the priority order — when two providers' signatures both occur in a
// text, the one declared first wins.
package rules

// Rule describes how to recognize one provider and pull the order
// identifier out of its documents.
type Rule struct {
	// Signatures are literal substrings matched case-insensitively
	// against page text. A provider with no signatures can never match.
	Signatures []string `json:"signatures"`

	// ExtractionPattern is a regular expression with one capture group
	// yielding the document identifier. Applied case-insensitive and
	// multiline. A malformed pattern degrades extraction for this
	// provider only; it never aborts a batch.
	ExtractionPattern string `json:"extraction_pattern"`

	// DestinationFolder overrides the output subfolder. Empty means
	// the provider key is used.
	DestinationFolder string `json:"destination_folder,omitempty"`
}

// Provider is one ordered entry of the rule file.
type Provider struct {
	Key string `json:"key"`
	Rule
}

// Snapshot is an immutable, ordered view of the rule file taken at load
// time. Classification holds a snapshot for the duration of one call and
// never mutates it; concurrent edits to the file are observed on the
// next load.
type Snapshot []Provider

// Lookup returns the rule for key and whether it exists.
func (s Snapshot) Lookup(key string) (Rule, bool) {
	for _, p := range s {
		if p.Key == key {
			return p.Rule, true
		}
	}
	return Rule{}, false
}

// Empty reports whether the snapshot has no providers at all.
func (s Snapshot) Empty() bool {
	return len(s) == 0
}

// Folder returns the destination folder for key, defaulting to the key
// itself when the rule has none or the key is unknown.
func (s Snapshot) Folder(key string) string {
	if r, ok := s.Lookup(key); ok && r.DestinationFolder != "" {
		return r.DestinationFolder
	}
	return key
}

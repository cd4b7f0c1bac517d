package index

import (
	"strings"

	"github.com/gosimple/slug"

	"github.com/packstore/packstore/pkg/domain"
)

const (
	// Tokens shorter than this (after stripping sign and sigil) are
	// discarded to prevent overly broad matches on short fragments.
	minTokenLength = 3

	// NullTag inside a tag filter matches entries that carry zero tags.
	NullTag = "null"

	tagSigil  = "#"
	typeSigil = "@"
	negSign   = "-"
)

// TagPredicate filters on an entry's tag set. MatchAny selects OR semantics
// across the listed tags (the default); NoTags matches entries without any
// tags.
type TagPredicate struct {
	Tags     []string
	MatchAny bool
	NoTags   bool
}

// Predicate is a structured positive or negative filter over index records.
// A nil *Predicate means "no constraint".
type Predicate struct {
	Name  string
	Types []string
	Terms []string
	Tags  *TagPredicate
}

// Empty reports whether the predicate constrains nothing.
func (p *Predicate) Empty() bool {
	return p == nil || (p.Name == "" && len(p.Types) == 0 && len(p.Terms) == 0 && p.Tags == nil)
}

func (p *Predicate) tags() *TagPredicate {
	if p.Tags == nil {
		p.Tags = &TagPredicate{MatchAny: true}
	}
	return p.Tags
}

// ParseQuery splits a compact text query into a positive and a negative
// predicate. Tokens prefixed "-" feed the negative predicate; "#x" is a tag
// filter (case-folded, "#null" meaning "has no tags"), "@x" a type filter
// (exact, case-sensitive), and anything else a free-text term matched as a
// case-insensitive substring of the entry name. ParseQuery is pure: the
// same input always yields the same predicates.
func ParseQuery(text string) (positive, negative *Predicate) {
	var pos, neg Predicate
	for _, token := range strings.Fields(text) {
		target := &pos
		if rest, ok := strings.CutPrefix(token, negSign); ok {
			target = &neg
			token = rest
		}

		switch {
		case strings.HasPrefix(token, tagSigil):
			tag := strings.ToLower(token[len(tagSigil):])
			if len(tag) < minTokenLength {
				continue
			}
			if tag == NullTag {
				target.tags().NoTags = true
				continue
			}
			tp := target.tags()
			tp.Tags = append(tp.Tags, slug.Make(tag))
		case strings.HasPrefix(token, typeSigil):
			typ := token[len(typeSigil):]
			if len(typ) < minTokenLength {
				continue
			}
			target.Types = append(target.Types, typ)
		default:
			if len(token) < minTokenLength {
				continue
			}
			target.Terms = append(target.Terms, strings.ToLower(token))
		}
	}
	return finalize(&pos), finalize(&neg)
}

// finalize collapses an entirely empty predicate to nil.
func finalize(p *Predicate) *Predicate {
	if p.Empty() {
		return nil
	}
	return p
}

// BuildPredicate constructs a positive predicate from structured filter
// arguments, bypassing the text parser. A nil matchAny keeps the any-tag
// default.
func BuildPredicate(name string, types, tags []string, matchAny *bool) *Predicate {
	p := &Predicate{Name: name}
	p.Types = append(p.Types, types...)
	for _, tag := range tags {
		folded := strings.ToLower(tag)
		if folded == NullTag {
			p.tags().NoTags = true
			continue
		}
		if s := slug.Make(folded); s != "" {
			tp := p.tags()
			tp.Tags = append(tp.Tags, s)
		}
	}
	if matchAny != nil && p.Tags != nil {
		p.Tags.MatchAny = *matchAny
	}
	return finalize(p)
}

// Match evaluates an index record against a positive and a negative
// predicate. Each predicate is an ordered chain of exclusive checks, not a
// conjunction: the first present category decides. The negative predicate
// mirrors the chain with its sense inverted and is consulted only if the
// positive chain passed.
func Match(rec *domain.IndexRecord, positive, negative *Predicate) bool {
	if positive != nil && !chainMatch(rec, positive) {
		return false
	}
	if negative != nil && chainMatch(rec, negative) {
		return false
	}
	return true
}

// chainMatch evaluates the ordered category chain: exact name, then type
// membership, then all-terms substring, then tags.
func chainMatch(rec *domain.IndexRecord, p *Predicate) bool {
	if p.Name != "" {
		return rec.Name == p.Name
	}
	if len(p.Types) > 0 {
		for _, typ := range p.Types {
			if rec.Type == typ {
				return true
			}
		}
		return false
	}
	if len(p.Terms) > 0 {
		name := strings.ToLower(rec.Name)
		for _, term := range p.Terms {
			if !strings.Contains(name, term) {
				return false
			}
		}
		return true
	}
	if p.Tags != nil {
		return matchTags(rec.Tags, p.Tags)
	}
	return true
}

func matchTags(tags []string, tp *TagPredicate) bool {
	if tp.NoTags {
		return len(tags) == 0
	}
	if tp.MatchAny {
		for _, want := range tp.Tags {
			if containsTag(tags, want) {
				return true
			}
		}
		return false
	}
	for _, want := range tp.Tags {
		if !containsTag(tags, want) {
			return false
		}
	}
	return true
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

// NormalizeTags slugifies each tag and drops values that slugify to
// nothing. Order is preserved; duplicates are not removed.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if s := slug.Make(tag); s != "" {
			out = append(out, s)
		}
	}
	return out
}

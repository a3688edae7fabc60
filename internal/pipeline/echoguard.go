package pipeline

import (
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

const (
	defaultEchoSimilarity = 0.82
	defaultEchoOverlap    = 0.60
)

// EchoGuard detects transcripts that are the assistant hearing its own
// playback rather than the user speaking. It compares each transcript
// against the most recently synthesized reply using two signals:
//
//  1. Jaro-Winkler similarity of the full normalized strings.
//  2. The fraction of transcript tokens whose Double Metaphone codes
//     appear in the reference reply.
//
// A transcript is treated as an echo when either signal exceeds its
// threshold. The guard is safe for concurrent use.
type EchoGuard struct {
	similarity float64
	overlap    float64

	mu        sync.Mutex
	reference string
	refCodes  map[string]struct{}
}

// EchoGuardOption is a functional option for configuring an [EchoGuard].
type EchoGuardOption func(*EchoGuard)

// WithEchoSimilarity sets the minimum Jaro-Winkler score at which a
// transcript counts as an echo of the reference. Default: 0.82.
func WithEchoSimilarity(threshold float64) EchoGuardOption {
	return func(g *EchoGuard) {
		g.similarity = threshold
	}
}

// WithEchoOverlap sets the minimum fraction of transcript tokens that must
// phonetically match the reference for the transcript to count as an echo.
// Default: 0.60.
func WithEchoOverlap(fraction float64) EchoGuardOption {
	return func(g *EchoGuard) {
		g.overlap = fraction
	}
}

// NewEchoGuard returns an [EchoGuard] with no reference set. Until
// [EchoGuard.SetReference] is called, IsEcho always reports false.
func NewEchoGuard(opts ...EchoGuardOption) *EchoGuard {
	g := &EchoGuard{
		similarity: defaultEchoSimilarity,
		overlap:    defaultEchoOverlap,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// SetReference records text as the reply most recently played back. An empty
// string clears the reference.
func (g *EchoGuard) SetReference(text string) {
	norm := normalize(text)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.reference = norm
	if norm == "" {
		g.refCodes = nil
		return
	}
	g.refCodes = phoneticCodes(strings.Fields(norm))
}

// IsEcho reports whether transcript is likely a capture of the current
// reference reply.
func (g *EchoGuard) IsEcho(transcript string) bool {
	norm := normalize(transcript)
	if norm == "" {
		return false
	}

	g.mu.Lock()
	reference := g.reference
	refCodes := g.refCodes
	g.mu.Unlock()

	if reference == "" {
		return false
	}

	if matchr.JaroWinkler(norm, reference, false) >= g.similarity {
		return true
	}

	tokens := strings.Fields(norm)
	if len(tokens) == 0 {
		return false
	}
	matched := 0
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			if _, ok := refCodes[p]; ok {
				matched++
				continue
			}
		}
		if s != "" {
			if _, ok := refCodes[s]; ok {
				matched++
			}
		}
	}
	return float64(matched)/float64(len(tokens)) >= g.overlap
}

// normalize lowercases text and strips punctuation so that transcription
// artifacts ("Hello, there!" vs "hello there") do not defeat the comparison.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// phoneticCodes returns the union of Double Metaphone codes for the tokens.
func phoneticCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

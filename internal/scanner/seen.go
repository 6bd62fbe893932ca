package scanner

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nao1215/deskmaster/internal/model"
)

// DefaultSeenSize bounds how many opened listings are remembered.
const DefaultSeenSize = 2048

// Seen remembers listings already opened in this session, so a listing
// that shows up again on a later page or keyword is not reopened.
type Seen struct {
	cache *lru.Cache[string, struct{}]
}

// NewSeen returns a Seen holding at most size listings.
func NewSeen(size int) *Seen {
	if size <= 0 {
		size = DefaultSeenSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Seen{cache: cache}
}

func seenKey(c model.Candidate) string {
	if c.Target == nil || c.Target.Name == "" {
		return ""
	}
	return c.Target.Name + "|" + strconv.Itoa(c.Reviews)
}

// Add records c and reports whether it was new.
// Listings without a name cannot be recognized and are always new.
func (s *Seen) Add(c model.Candidate) bool {
	if s == nil {
		return true
	}
	key := seenKey(c)
	if key == "" {
		return true
	}
	if s.cache.Contains(key) {
		return false
	}
	s.cache.Add(key, struct{}{})
	return true
}

// Has reports whether c was added before.
func (s *Seen) Has(c model.Candidate) bool {
	if s == nil {
		return false
	}
	key := seenKey(c)
	return key != "" && s.cache.Contains(key)
}

// Len returns the number of remembered listings.
func (s *Seen) Len() int {
	if s == nil {
		return 0
	}
	return s.cache.Len()
}

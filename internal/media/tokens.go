package media

import (
	"errors"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrTokenUnknown  = errors.New("unknown media token")
	ErrTokenExpired  = errors.New("media token expired")
	ErrTokenMismatch = errors.New("media token does not match artifact or filename")
)

// AccessToken grants time-bounded access to one artifact under one exact
// filename. Tokens are the only way to fetch an artifact over the endpoint.
type AccessToken struct {
	Value      string
	ArtifactID string
	Filename   string
	ExpiresAt  time.Time
}

// tokenCache holds outstanding tokens. Capacity bounds the number of live
// tokens independent of TTL: oldest tokens are evicted when full.
type tokenCache struct {
	cache *lru.Cache[string, AccessToken]
	now   func() time.Time
}

func newTokenCache(size int) (*tokenCache, error) {
	c, err := lru.New[string, AccessToken](size)
	if err != nil {
		return nil, err
	}
	return &tokenCache{cache: c, now: time.Now}, nil
}

// Mint issues a token bound to the artifact and its exact filename.
func (t *tokenCache) Mint(artifactID, filename string, ttl time.Duration) AccessToken {
	tok := AccessToken{
		Value:      uuid.NewString(),
		ArtifactID: artifactID,
		Filename:   filename,
		ExpiresAt:  t.now().Add(ttl),
	}
	t.cache.Add(tok.Value, tok)
	return tok
}

// Validate checks a presented token against the requested artifact and
// filename. A token minted for filename F fails for any other filename,
// even before expiry.
func (t *tokenCache) Validate(value, artifactID, filename string) error {
	tok, ok := t.cache.Get(value)
	if !ok {
		return ErrTokenUnknown
	}
	if tok.ArtifactID != artifactID || tok.Filename != filename {
		return ErrTokenMismatch
	}
	if t.now().After(tok.ExpiresAt) {
		t.cache.Remove(value)
		return ErrTokenExpired
	}
	return nil
}

package audio

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/logger"
)

// Clips holds voice clips in memory, addressed by MediaRef. Clips are
// never written to disk and can be forgotten once their message burns.
// Safe for concurrent use.
type Clips struct {
	mu    sync.RWMutex
	clips map[domain.MediaRef][]byte
	// live holds refs that appeared in the last message list. Only these
	// can burn: a freshly recorded clip is not in any list yet.
	live map[domain.MediaRef]bool
	log  *logger.Logger
}

// NewClips creates an empty clip library.
func NewClips(log *logger.Logger) *Clips {
	return &Clips{
		clips: make(map[domain.MediaRef][]byte),
		live:  make(map[domain.MediaRef]bool),
		log:   log,
	}
}

// Record stores a synthesized clip of length d and returns its reference.
// It stands in for microphone capture.
func (c *Clips) Record(d time.Duration) domain.MediaRef {
	ref := domain.MediaRef("clip:" + uuid.NewString())
	h := fnv.New32a()
	h.Write([]byte(ref))
	c.Put(ref, Chirp(d, h.Sum32()))
	return ref
}

// Put stores wav under ref.
func (c *Clips) Put(ref domain.MediaRef, wav []byte) {
	c.mu.Lock()
	c.clips[ref] = wav
	n := len(c.clips)
	c.mu.Unlock()
	c.log.Debug("stored clip %s (%d bytes, %d held)", ref, len(wav), n)
}

// Get returns the clip for ref or domain.ErrNotFound.
func (c *Clips) Get(ref domain.MediaRef) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	wav, ok := c.clips[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return wav, nil
}

// Forget takes the current message list and drops the clips of voice
// messages that were live in the previous list and are gone from this
// one. Clips never seen in a list are kept.
func (c *Clips) Forget(live []domain.Message) {
	now := make(map[domain.MediaRef]bool, len(live))
	for _, m := range live {
		if v, ok := m.Content.(domain.Voice); ok {
			now[v.Clip] = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	burned := 0
	for ref := range c.live {
		if !now[ref] {
			delete(c.clips, ref)
			burned++
		}
	}
	c.live = now
	if burned > 0 {
		c.log.Debug("forgot %d burned clip(s), %d held", burned, len(c.clips))
	}
}

// Len returns the number of stored clips.
func (c *Clips) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clips)
}

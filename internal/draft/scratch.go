package draft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Scratch is the recovery buffer for unsaved drafts, one slot per editor
type Scratch interface {
	Save(slot string, d Draft) error
	// Load returns nil when the slot is empty
	Load(slot string) (*Draft, error)
	Clear(slot string) error
}

// SlotFor returns the scratch slot of a profile
func SlotFor(profileID string) string {
	return "article-draft:" + profileID
}

var bucketDrafts = []byte("drafts")

// Buffer is a Scratch on a bbolt file
type Buffer struct {
	db *bolt.DB
}

// OpenBuffer opens or creates the scratch file at path
func OpenBuffer(path string) (*Buffer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch buffer: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDrafts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create drafts bucket: %w", err)
	}
	return &Buffer{db: db}, nil
}

func (b *Buffer) Close() error {
	return b.db.Close()
}

func (b *Buffer) Save(slot string, d Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDrafts).Put([]byte(slot), data)
	})
}

func (b *Buffer) Load(slot string) (*Draft, error) {
	var d *Draft
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDrafts).Get([]byte(slot))
		if data == nil {
			return nil
		}
		d = &Draft{}
		return json.Unmarshal(data, d)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load draft %s: %w", slot, err)
	}
	return d, nil
}

func (b *Buffer) Clear(slot string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDrafts).Delete([]byte(slot))
	})
}

// LoadExisting starts editing a persisted article. Any recovery state in
// slot is discarded, since it belongs to an earlier session.
func LoadExisting(a models.Article, scratch Scratch, slot string) *Draft {
	if scratch != nil {
		if err := scratch.Clear(slot); err != nil {
			log := logger.Component("draft")
			log.Warn().Err(err).Str("slot", slot).Msg("Failed to clear scratch slot")
		}
	}
	return FromArticle(a)
}

// Autosaver copies a draft into its scratch slot on an interval and once
// more on Stop.
type Autosaver struct {
	scratch  Scratch
	slot     string
	snapshot func() (Draft, bool)
	log      zerolog.Logger

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// StartAutosave launches the autosave goroutine. snapshot returns the draft
// and whether it has unsaved changes; it must be safe to call from another
// goroutine.
func StartAutosave(scratch Scratch, slot string, interval time.Duration, snapshot func() (Draft, bool)) *Autosaver {
	a := &Autosaver{
		scratch:  scratch,
		slot:     slot,
		snapshot: snapshot,
		log:      logger.Component("autosave"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run(interval)
	return a
}

func (a *Autosaver) run(interval time.Duration) {
	defer close(a.done)
	if interval <= 0 {
		<-a.stop
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.stop:
			return
		}
	}
}

func (a *Autosaver) flush() {
	d, modified := a.snapshot()
	if !modified {
		return
	}
	if err := a.scratch.Save(a.slot, d); err != nil {
		a.log.Error().Err(err).Str("slot", a.slot).Msg("Autosave failed")
	}
}

// Stop ends the goroutine and writes the final state
func (a *Autosaver) Stop() {
	a.halt()
	a.flush()
}

// Discard ends the goroutine and clears the slot, for saved or cancelled drafts
func (a *Autosaver) Discard() {
	a.halt()
	if err := a.scratch.Clear(a.slot); err != nil {
		a.log.Error().Err(err).Str("slot", a.slot).Msg("Failed to clear scratch slot")
	}
}

func (a *Autosaver) halt() {
	a.once.Do(func() { close(a.stop) })
	<-a.done
}

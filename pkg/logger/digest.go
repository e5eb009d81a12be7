package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a flushed batch somewhere durable.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// DigestConfig controls how often repeated errors are flushed.
type DigestConfig struct {
	Interval  time.Duration `yaml:"interval" default:"30s"`
	MaxUnique int           `yaml:"max_unique" default:"100"`
	Topic     string        `yaml:"topic"`
	Publisher Publisher     `yaml:"-"`
}

// DigestEntry is one distinct error together with how often it fired.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest folds identical error entries together so a failing store does not
// flood the log topic with one message per evaluation.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	entries map[string]*DigestEntry
	now     func() time.Time
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewDigest starts the periodic flush loop.
func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxUnique <= 0 {
		cfg.MaxUnique = 100
	}
	d := &Digest{
		cfg:     cfg,
		entries: make(map[string]*DigestEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// Add records one occurrence.
func (d *Digest) Add(level, msg string, fields map[string]interface{}, caller string) {
	key := fingerprint(level, msg, fields, caller)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	d.entries[key] = &DigestEntry{
		Level: level, Message: msg, Fields: fields, Caller: caller,
		Count: 1, FirstSeen: now, LastSeen: now,
	}
	if len(d.entries) >= d.cfg.MaxUnique {
		d.flushLocked()
	}
}

// Pending returns the number of distinct entries awaiting flush.
func (d *Digest) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Close flushes what is left and stops the loop.
func (d *Digest) Close() {
	select {
	case <-d.done:
		return
	default:
		close(d.done)
	}
	d.wg.Wait()
}

func (d *Digest) loop() {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
		case <-d.done:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
			return
		}
	}
}

func (d *Digest) flushLocked() {
	if len(d.entries) == 0 {
		return
	}
	batch := make([]DigestEntry, 0, len(d.entries))
	for _, e := range d.entries {
		batch = append(batch, *e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].FirstSeen.Before(batch[j].FirstSeen) })
	d.entries = make(map[string]*DigestEntry)

	if d.cfg.Publisher == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
			// the logger itself is the failing path here
			_, _ = os.Stderr.WriteString("log digest publish failed: " + err.Error() + "\n")
		}
	}()
}

func fingerprint(level, msg string, fields map[string]interface{}, caller string) string {
	b, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, msg, fields, caller})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

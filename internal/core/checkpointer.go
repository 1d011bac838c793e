package core

import (
	"context"
	"sync"
	"time"

	"github.com/nimda/routeros-brute/internal/credentials"
	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/session"
	zlog "github.com/rs/zerolog/log"
)

// Checkpointer is the single writer of a session record. Workers hand it
// events through Observe; it folds them into the record and saves every
// saveEvery events, every saveInterval, and on Stop.
type Checkpointer struct {
	mu     sync.RWMutex
	store  *session.Store
	record *session.Record
	target string

	saveInterval time.Duration
	saveEvery    int

	tested      int
	resumeIndex int
	// prefixFailed counts rejections below resumeIndex; failedAhead holds the
	// rejected indexes at or past it, which a resumed run tests again.
	prefixFailed int
	failedAhead  map[int]struct{}
	successes    []session.Success
	pending      int

	updateChan chan Event
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewCheckpointer continues rec from its resume index. Combos past the
// watermark that an earlier run tested will be tested again, so the tested
// and failed counts restart from the watermark.
func NewCheckpointer(store *session.Store, rec *session.Record, saveInterval time.Duration, saveEvery int) *Checkpointer {
	if saveEvery < 1 {
		saveEvery = 10
	}
	prefixFailed := rec.ResumeFailed
	if prefixFailed == 0 && rec.TestedCombinations == rec.ResumeIndex {
		// records written before resume_failed existed
		prefixFailed = rec.FailedCombinations
	}
	return &Checkpointer{
		store:        store,
		record:       rec,
		target:       rec.Target,
		saveInterval: saveInterval,
		saveEvery:    saveEvery,
		tested:       rec.ResumeIndex,
		resumeIndex:  rec.ResumeIndex,
		prefixFailed: prefixFailed,
		failedAhead:  make(map[int]struct{}),
		successes:    append([]session.Success(nil), rec.SuccessfulCredentials...),
		updateChan:   make(chan Event, 1000),
		stopChan:     make(chan struct{}),
	}
}

// Start begins the update processor and auto-save goroutines
func (c *Checkpointer) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.updateProcessor()

	if c.saveInterval > 0 {
		c.wg.Add(1)
		go c.autoSaveLoop(ctx)
		zlog.Debug().
			Dur("interval", c.saveInterval).
			Str("session", c.record.SessionID).
			Msg("Auto-save enabled")
	}
}

// Observe queues an event. It blocks when the buffer is full rather than drop
// a success.
func (c *Checkpointer) Observe(ev Event) {
	c.updateChan <- ev
}

// Stop drains pending events, stops the goroutines and saves once more
func (c *Checkpointer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		close(c.updateChan)
	})
	c.wg.Wait()

	if err := c.SaveNow(); err != nil {
		zlog.Error().Err(err).Msg("Failed to save final session state")
	}
}

// Complete marks the session finished. Call after Stop.
func (c *Checkpointer) Complete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Complete(c.record)
}

func (c *Checkpointer) updateProcessor() {
	defer c.wg.Done()

	for ev := range c.updateChan {
		c.mu.Lock()
		c.tested++
		switch ev.Outcome {
		case interfaces.OutcomeSuccess:
			c.successes = append(c.successes, session.Success{
				Username: ev.Credential.Username,
				Password: ev.Credential.Password,
				Services: ev.Services,
				Target:   c.target,
				FoundAt:  time.Now(),
			})
		case interfaces.OutcomeFailure:
			if ev.Index < c.resumeIndex {
				c.prefixFailed++
			} else {
				c.failedAhead[ev.Index] = struct{}{}
			}
		}
		c.advance(ev.Watermark)
		c.pending++
		flush := c.pending >= c.saveEvery || ev.Outcome == interfaces.OutcomeSuccess
		c.mu.Unlock()

		if flush {
			if err := c.SaveNow(); err != nil {
				zlog.Error().Err(err).Msg("Failed to save session checkpoint")
			}
		}
	}
	zlog.Debug().Msg("Checkpoint processor stopped")
}

// advance moves the watermark and folds the rejections it passed into the prefix
func (c *Checkpointer) advance(watermark int) {
	if watermark <= c.resumeIndex {
		return
	}
	for idx := range c.failedAhead {
		if idx < watermark {
			c.prefixFailed++
			delete(c.failedAhead, idx)
		}
	}
	c.resumeIndex = watermark
}

func (c *Checkpointer) autoSaveLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.RLock()
			shouldSave := c.pending > 0
			c.mu.RUnlock()

			if shouldSave {
				if err := c.SaveNow(); err != nil {
					zlog.Error().Err(err).Msg("Failed to save session during auto-save")
				}
			}

		case <-c.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

// SaveNow writes the current progress to the store
func (c *Checkpointer) SaveNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.Update(c.record, session.Progress{
		Tested:       c.tested,
		ResumeIndex:  c.resumeIndex,
		Failed:       c.prefixFailed + len(c.failedAhead),
		ResumeFailed: c.prefixFailed,
		Successes:    c.successes,
	})
	if err != nil {
		return err
	}
	c.pending = 0

	zlog.Debug().
		Str("session", c.record.SessionID).
		Int("tested", c.record.TestedCombinations).
		Int("total", c.record.TotalCombinations).
		Int("successful", len(c.record.SuccessfulCredentials)).
		Msg("Progress saved")
	return nil
}

// AttachValidation records a validation result on a found credential
func (c *Checkpointer) AttachValidation(username, password, result string) {
	c.mu.Lock()
	for i := range c.successes {
		if c.successes[i].Username == username && c.successes[i].Password == password {
			c.successes[i].Validation = result
		}
	}
	c.mu.Unlock()
}

// PriorSuccesses converts the credentials rec already holds for the engine
// summary of a resumed run
func PriorSuccesses(rec *session.Record) []Success {
	out := make([]Success, 0, len(rec.SuccessfulCredentials))
	for _, s := range rec.SuccessfulCredentials {
		out = append(out, Success{
			Credential: credentials.Credential{Username: s.Username, Password: s.Password},
			Services:   append([]string(nil), s.Services...),
			FoundAt:    s.FoundAt,
		})
	}
	return out
}

// Record returns a copy of the current session record
func (c *Checkpointer) Record() session.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.record
}

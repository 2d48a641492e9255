// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
)

// jobStore keeps every batch job for the process lifetime so the HTTP layer
// can poll status after ExecuteBatch returns. Jobs are mutated item by item
// by the engine; readers always get a snapshot.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*cnft.BatchJob
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*cnft.BatchJob)}
}

func (s *jobStore) create(intents []cnft.Intent, now time.Time) *cnft.BatchJob {
	job := &cnft.BatchJob{
		ID:        uuid.NewString(),
		Items:     make([]cnft.BatchItem, len(intents)),
		StartedAt: now,
	}
	for i, intent := range intents {
		job.Items[i] = cnft.BatchItem{
			Intent: intent,
			Asset:  intent.Ref().AssetID,
			Status: cnft.StatusPending,
		}
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

func (s *jobStore) update(jobID string, item int, status cnft.ItemStatus, sig cnft.Signature, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || item < 0 || item >= len(job.Items) {
		return
	}
	job.Items[item].Status = status
	job.Items[item].Signature = sig
	job.Items[item].Reason = reason
}

func (s *jobStore) finish(jobID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.FinishedAt = now
	}
}

// get returns a deep copy so callers never observe a job mid-mutation.
func (s *jobStore) get(jobID string) (*cnft.BatchJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	snap := *job
	snap.Items = make([]cnft.BatchItem, len(job.Items))
	copy(snap.Items, job.Items)
	return &snap, true
}

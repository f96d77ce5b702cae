package session

import (
	"context"
	"sync"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
)

// Outcome is how a submitted analysis ended.
type Outcome struct {
	// Result is the committed verdict on success.
	Result *model.RiskResult
	// Err is the committed failure.
	Err error
	// Stale is set when the session moved past the artifact before the
	// response arrived; nothing was committed.
	Stale bool
}

// Pending is a handle on the one in-flight analysis.
type Pending struct {
	artifactID model.ArtifactID
	generation uint64
	cancel     context.CancelFunc

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newPending(a model.Artifact, generation uint64, cancel context.CancelFunc) *Pending {
	return &Pending{
		artifactID: a.ArtifactID(),
		generation: generation,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// ArtifactID is the artifact this request was issued for.
func (p *Pending) ArtifactID() model.ArtifactID { return p.artifactID }

// Done is closed once the outcome is known and, unless stale, committed.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request resolves or ctx is done. The outcome's Err
// is also returned as the error so callers can use the usual check.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-p.done:
		return p.outcome, p.outcome.Err
	}
}

func (p *Pending) finish(o Outcome) {
	p.once.Do(func() {
		p.cancel()
		p.outcome = o
		close(p.done)
	})
}

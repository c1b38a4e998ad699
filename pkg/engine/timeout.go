package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/chazu/tenon/pkg/tree"
)

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// evalResult passes evaluation output through the worker channel.
type evalResult struct {
	tree   *tree.Tree
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, returning a timeout error if
// the evaluation exceeds EvalTimeout. A generation counter discards stale
// results: on timeout the goroutine may still be running, and the check
// ensures its late result is dropped when a newer evaluation has started.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*tree.Tree, []EvalError, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, fmt.Errorf("evaluation superseded by newer request")
		}
		return res.tree, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("evaluation timed out after %s", EvalTimeout)
	}
}

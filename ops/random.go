package ops

import (
	cryptorand "crypto/rand"
	mathrand "math/rand"
	"sync"

	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/errs"
)

// Random exposes the get_random_values op. When Seed is non-nil the stream
// is deterministic (test/reproducibility mode); otherwise it draws from the
// platform entropy source.
type Random struct {
	mu   sync.Mutex
	seed *mathrand.Rand
}

// NewRandom returns a Random. If seed is non-nil, get_random_values becomes
// deterministic: successive calls continue the same pseudo-random stream.
func NewRandom(seed *int64) *Random {
	r := &Random{}
	if seed != nil {
		r.seed = mathrand.New(mathrand.NewSource(*seed))
	}
	return r
}

// GetRandomValues implements get_random_values(buffer): it fills the
// zero-copy buffer in place.
func (r *Random) GetRandomValues(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	if len(req.ZeroCopy) == 0 {
		return dispatch.Result{}, errs.Newf(errs.NoBuffer, "get_random_values: no zero-copy buffer specified")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seed != nil {
		r.seed.Read(req.ZeroCopy) //nolint:errcheck // math/rand.Rand.Read never errors
	} else if _, err := cryptorand.Read(req.ZeroCopy); err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	return dispatch.SyncResult(dispatch.EncodeMinimal(dispatch.MinimalEnvelope{
		Result: int32(len(req.ZeroCopy)),
	})), nil
}

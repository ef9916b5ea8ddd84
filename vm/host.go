package vm

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/chazu/blockjit/cast"
)

// Host is the runtime a script drives: the sprite it is attached to and
// the scheduler services. Generated code reaches the same operations
// through its target and runtime objects.
type Host interface {
	Say(msg string)
	Think(msg string)
	MoveSteps(steps float64)
	SetXY(x, y float64)
	Turn(degrees float64)
	ChangeX(dx float64)
	ChangeY(dy float64)
	X() float64
	Y() float64
	Direction() float64

	Broadcast(name string)
	Timer() float64
	Wait(seconds float64)
	// Random returns a number in [0, 1).
	Random() float64
	StopAll()
	StopOtherScripts()
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

// Recorder is a deterministic Host that keeps sprite state in memory and
// logs every side effect. Two recorders built with the same seed see the
// same random stream, which is what parity checks rely on.
type Recorder struct {
	mu    sync.Mutex
	x, y  float64
	dir   float64
	timer float64
	rnd   *rand.Rand
	calls []string
}

// NewRecorder creates a recorder at the origin facing 90 degrees.
func NewRecorder(seed int64) *Recorder {
	return &Recorder{dir: 90, rnd: rand.New(rand.NewSource(seed))}
}

func (r *Recorder) record(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns the side effects seen so far.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// String joins the calls, one per line.
func (r *Recorder) String() string {
	return strings.Join(r.Calls(), "\n")
}

func (r *Recorder) Say(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("say %q", msg)
}

func (r *Recorder) Think(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("think %q", msg)
}

func (r *Recorder) MoveSteps(steps float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rad := math.Pi * (90 - r.dir) / 180
	r.x += steps * math.Cos(rad)
	r.y += steps * math.Sin(rad)
	r.record("move %s", cast.NumberToString(steps))
}

func (r *Recorder) SetXY(x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.x, r.y = x, y
	r.record("goto %s %s", cast.NumberToString(x), cast.NumberToString(y))
}

func (r *Recorder) Turn(degrees float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = wrapDirection(r.dir + degrees)
	r.record("turn %s", cast.NumberToString(degrees))
}

func (r *Recorder) ChangeX(dx float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.x += dx
	r.record("changex %s", cast.NumberToString(dx))
}

func (r *Recorder) ChangeY(dy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.y += dy
	r.record("changey %s", cast.NumberToString(dy))
}

func (r *Recorder) X() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.x
}

func (r *Recorder) Y() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.y
}

func (r *Recorder) Direction() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

func (r *Recorder) Broadcast(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("broadcast %q", name)
}

// Timer advances by one tenth of a second per read, so loops that wait
// on the timer terminate.
func (r *Recorder) Timer() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timer += 0.1
	return r.timer
}

func (r *Recorder) Wait(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("wait %s", cast.NumberToString(seconds))
}

func (r *Recorder) Random() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

func (r *Recorder) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("stop all")
}

func (r *Recorder) StopOtherScripts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("stop others")
}

// wrapDirection keeps a direction in (-180, 180].
func wrapDirection(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d <= 0 {
		d += 360
	}
	return d - 180
}

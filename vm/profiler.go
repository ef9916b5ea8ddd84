package vm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Profiler counts script runs and statement executions in the interpreter
// so hot scripts can be handed to the compiler first. Scripts are usually
// run a handful of times; their loop bodies run far more often, so blocks
// get a higher threshold.

// CodeRef names a script or block of one target.
type CodeRef struct {
	Target string
	ID     string
}

// ScriptProfile holds profiling data for a single script.
type ScriptProfile struct {
	RunCount uint64 // Atomic counter for runs
	IsHot    bool   // True if threshold exceeded
}

// BlockProfile holds profiling data for a single statement block.
type BlockProfile struct {
	ExecCount uint64 // Atomic counter for executions
	IsHot     bool   // True if threshold exceeded
	ScriptID  string // The script containing this block
}

// Profiler manages profiling for all scripts and blocks a machine runs.
type Profiler struct {
	scriptProfiles sync.Map // CodeRef -> *ScriptProfile
	blockProfiles  sync.Map // CodeRef -> *BlockProfile

	ScriptHotThreshold uint64 // Default: 10
	BlockHotThreshold  uint64 // Default: 1000

	// Called once when a script or block becomes hot, with either a
	// *ScriptProfile or a *BlockProfile.
	OnHot func(ref CodeRef, profile interface{})

	hotScriptCount uint64
	hotBlockCount  uint64
	mu             sync.Mutex // guards the IsHot transitions
}

// NewProfiler creates a new profiler with default thresholds.
func NewProfiler() *Profiler {
	return &Profiler{
		ScriptHotThreshold: 10,
		BlockHotThreshold:  1000,
	}
}

// RecordScriptRun increments the run count for a script.
// Returns true if this run caused the script to become hot.
func (p *Profiler) RecordScriptRun(ref CodeRef) bool {
	val, _ := p.scriptProfiles.LoadOrStore(ref, &ScriptProfile{})
	profile := val.(*ScriptProfile)

	count := atomic.AddUint64(&profile.RunCount, 1)
	if count < p.ScriptHotThreshold {
		return false
	}

	p.mu.Lock()
	became := !profile.IsHot
	profile.IsHot = true
	p.mu.Unlock()
	if !became {
		return false
	}
	atomic.AddUint64(&p.hotScriptCount, 1)
	if p.OnHot != nil {
		p.OnHot(ref, profile)
	}
	return true
}

// RecordBlockExec increments the execution count for a statement block.
// Returns true if this execution caused the block to become hot.
func (p *Profiler) RecordBlockExec(ref CodeRef, scriptID string) bool {
	val, _ := p.blockProfiles.LoadOrStore(ref, &BlockProfile{ScriptID: scriptID})
	profile := val.(*BlockProfile)

	count := atomic.AddUint64(&profile.ExecCount, 1)
	if count < p.BlockHotThreshold {
		return false
	}

	p.mu.Lock()
	became := !profile.IsHot
	profile.IsHot = true
	p.mu.Unlock()
	if !became {
		return false
	}
	atomic.AddUint64(&p.hotBlockCount, 1)
	if p.OnHot != nil {
		p.OnHot(ref, profile)
	}
	return true
}

// GetScriptProfile returns the profile for a script, or nil if not tracked.
func (p *Profiler) GetScriptProfile(ref CodeRef) *ScriptProfile {
	if val, ok := p.scriptProfiles.Load(ref); ok {
		return val.(*ScriptProfile)
	}
	return nil
}

// GetBlockProfile returns the profile for a block, or nil if not tracked.
func (p *Profiler) GetBlockProfile(ref CodeRef) *BlockProfile {
	if val, ok := p.blockProfiles.Load(ref); ok {
		return val.(*BlockProfile)
	}
	return nil
}

// IsScriptHot returns true if the script has exceeded the hot threshold.
func (p *Profiler) IsScriptHot(ref CodeRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile := p.GetScriptProfile(ref)
	return profile != nil && profile.IsHot
}

// IsBlockHot returns true if the block has exceeded the hot threshold.
func (p *Profiler) IsBlockHot(ref CodeRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile := p.GetBlockProfile(ref)
	return profile != nil && profile.IsHot
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	TotalScripts int    // Number of scripts profiled
	TotalBlocks  int    // Number of blocks profiled
	HotScripts   int    // Number of hot scripts
	HotBlocks    int    // Number of hot blocks
	ScriptRuns   uint64 // Total script runs
	BlockExecs   uint64 // Total block executions
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats
	p.mu.Lock()
	defer p.mu.Unlock()

	p.scriptProfiles.Range(func(key, value interface{}) bool {
		profile := value.(*ScriptProfile)
		stats.TotalScripts++
		stats.ScriptRuns += atomic.LoadUint64(&profile.RunCount)
		if profile.IsHot {
			stats.HotScripts++
		}
		return true
	})

	p.blockProfiles.Range(func(key, value interface{}) bool {
		profile := value.(*BlockProfile)
		stats.TotalBlocks++
		stats.BlockExecs += atomic.LoadUint64(&profile.ExecCount)
		if profile.IsHot {
			stats.HotBlocks++
		}
		return true
	})
	return stats
}

// HotScripts returns all scripts that have exceeded the hot threshold,
// sorted by target and id.
func (p *Profiler) HotScripts() []CodeRef {
	var hot []CodeRef
	p.mu.Lock()
	p.scriptProfiles.Range(func(key, value interface{}) bool {
		if value.(*ScriptProfile).IsHot {
			hot = append(hot, key.(CodeRef))
		}
		return true
	})
	p.mu.Unlock()
	sortRefs(hot)
	return hot
}

type refCount struct {
	ref   CodeRef
	count uint64
}

// TopBlocks returns the n most frequently executed blocks, most frequent
// first.
func (p *Profiler) TopBlocks(n int) []CodeRef {
	var all []refCount
	p.blockProfiles.Range(func(key, value interface{}) bool {
		profile := value.(*BlockProfile)
		all = append(all, refCount{key.(CodeRef), atomic.LoadUint64(&profile.ExecCount)})
		return true
	})
	return top(all, n)
}

// TopScripts returns the n most frequently run scripts.
func (p *Profiler) TopScripts(n int) []CodeRef {
	var all []refCount
	p.scriptProfiles.Range(func(key, value interface{}) bool {
		profile := value.(*ScriptProfile)
		all = append(all, refCount{key.(CodeRef), atomic.LoadUint64(&profile.RunCount)})
		return true
	})
	return top(all, n)
}

func top(all []refCount, n int) []CodeRef {
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return lessRef(all[i].ref, all[j].ref)
	})
	result := make([]CodeRef, 0, n)
	for i := 0; i < n && i < len(all); i++ {
		result = append(result, all[i].ref)
	}
	return result
}

func lessRef(a, b CodeRef) bool {
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.ID < b.ID
}

func sortRefs(refs []CodeRef) {
	sort.Slice(refs, func(i, j int) bool { return lessRef(refs[i], refs[j]) })
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scriptProfiles = sync.Map{}
	p.blockProfiles = sync.Map{}
	atomic.StoreUint64(&p.hotScriptCount, 0)
	atomic.StoreUint64(&p.hotBlockCount, 0)
}

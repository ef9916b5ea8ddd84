package compiler

// Frame records the control context of the code being emitted. Frames are
// pushed around branch and loop bodies and form a strict stack.
type Frame struct {
	// IsLoop marks a loop body; a yield at its end keeps non-warp
	// scripts cooperative.
	IsLoop bool
	// IsLastBlock is set while the final statement of the frame's stack
	// is being emitted.
	IsLastBlock bool
	// Label names the enclosing labelled statement, if any, so nested code
	// can leave it with "break label".
	Label string
	// Data is free for extensions, such as the temporary a switch block
	// compares its cases against.
	Data map[string]interface{}
}

// WithFrame pushes f, runs fn and pops f again on every exit path,
// including panics.
func (u *Unit) WithFrame(f *Frame, fn func() error) error {
	u.frames = append(u.frames, f)
	defer func() {
		u.frames[len(u.frames)-1] = nil
		u.frames = u.frames[:len(u.frames)-1]
	}()
	return fn()
}

// Frame returns the innermost frame, or nil at the top of the script.
func (u *Unit) Frame() *Frame {
	if len(u.frames) == 0 {
		return nil
	}
	return u.frames[len(u.frames)-1]
}

// FrameDepth returns the number of active frames.
func (u *Unit) FrameDepth() int { return len(u.frames) }

// FindFrame returns the innermost frame matching pred, or nil.
func (u *Unit) FindFrame(pred func(*Frame) bool) *Frame {
	for i := len(u.frames) - 1; i >= 0; i-- {
		if pred(u.frames[i]) {
			return u.frames[i]
		}
	}
	return nil
}

// InLoop reports whether any enclosing frame is a loop.
func (u *Unit) InLoop() bool {
	return u.FindFrame(func(f *Frame) bool { return f.IsLoop }) != nil
}

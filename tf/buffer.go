// Package tf stores a time-indexed tree of coordinate frame transforms and answers queries for the
// transform between any two connected frames at a point in time.
package tf

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/spatialmath"
)

// DefaultCacheTime is how long dynamic transforms are kept.
const DefaultCacheTime = 10 * time.Second

// StampedTransform is the pose of Child expressed in Parent at Stamp.
type StampedTransform struct {
	Stamp  time.Time
	Parent string
	Child  string
	Pose   spatialmath.Pose
}

type sample struct {
	stamp time.Time
	pose  spatialmath.Pose
}

// frameHistory holds the transforms received for one child frame, oldest first.
type frameHistory struct {
	parent  string
	static  bool
	samples []sample
}

// Buffer keeps the recent history of every frame's transform to its parent.
type Buffer struct {
	mu        sync.Mutex
	frames    map[string]*frameHistory
	cacheTime time.Duration
	clk       clock.Clock
	logger    logging.Logger
	// closed and replaced whenever a transform is added.
	changed chan struct{}
}

// NewBuffer returns an empty buffer that keeps cacheTime of dynamic transforms. A zero cacheTime
// uses DefaultCacheTime.
func NewBuffer(logger logging.Logger, clk clock.Clock, cacheTime time.Duration) *Buffer {
	if cacheTime <= 0 {
		cacheTime = DefaultCacheTime
	}
	return &Buffer{
		frames:    map[string]*frameHistory{},
		cacheTime: cacheTime,
		clk:       clk,
		logger:    logger,
		changed:   make(chan struct{}),
	}
}

// CacheTime returns how long dynamic transforms are kept.
func (b *Buffer) CacheTime() time.Duration {
	return b.cacheTime
}

// SetTransform adds a transform. Static transforms hold at every time and replace any previous
// static transform of the child. Dynamic transforms older than the cache window are rejected.
func (b *Buffer) SetTransform(transform StampedTransform, static bool) error {
	if transform.Parent == "" || transform.Child == "" {
		return ErrEmptyFrameName
	}
	if transform.Parent == transform.Child {
		return errors.Errorf("frame %q cannot be its own parent", transform.Child)
	}
	if transform.Pose == nil {
		return errors.Errorf("transform from %q to %q has no pose", transform.Parent, transform.Child)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.createsLoop(transform.Parent, transform.Child) {
		return errors.Errorf("adding %q as the parent of %q would create a loop", transform.Parent, transform.Child)
	}

	hist, ok := b.frames[transform.Child]
	if !ok || hist.static != static || hist.parent != transform.Parent {
		if ok {
			b.logger.Debugw("frame changed parent, dropping its history",
				"frame", transform.Child, "old_parent", hist.parent, "new_parent", transform.Parent)
		}
		hist = &frameHistory{parent: transform.Parent, static: static}
		b.frames[transform.Child] = hist
	}

	s := sample{stamp: transform.Stamp, pose: transform.Pose}
	if static {
		hist.samples = []sample{s}
	} else {
		if n := len(hist.samples); n > 0 && transform.Stamp.Before(hist.samples[n-1].stamp.Add(-b.cacheTime)) {
			return errors.Errorf("transform for frame %q at %s is older than the cache window",
				transform.Child, transform.Stamp.Format(time.RFC3339Nano))
		}
		idx := sort.Search(len(hist.samples), func(i int) bool { return !hist.samples[i].stamp.Before(s.stamp) })
		if idx < len(hist.samples) && hist.samples[idx].stamp.Equal(s.stamp) {
			hist.samples[idx] = s
		} else {
			hist.samples = slices.Insert(hist.samples, idx, s)
		}
		newest := hist.samples[len(hist.samples)-1].stamp
		keep := sort.Search(len(hist.samples), func(i int) bool {
			return !hist.samples[i].stamp.Before(newest.Add(-b.cacheTime))
		})
		hist.samples = hist.samples[keep:]
	}

	close(b.changed)
	b.changed = make(chan struct{})
	return nil
}

func (b *Buffer) createsLoop(parent, child string) bool {
	for frame := parent; ; {
		if frame == child {
			return true
		}
		hist, ok := b.frames[frame]
		if !ok {
			return false
		}
		frame = hist.parent
	}
}

// FrameNames returns every known frame, sorted.
func (b *Buffer) FrameNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[string]struct{}{}
	for child, hist := range b.frames {
		seen[child] = struct{}{}
		seen[hist.parent] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes every transform.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = map[string]*frameHistory{}
}

// chain returns frame and its ancestors, ending at a root.
func (b *Buffer) chain(frame string) []string {
	chain := []string{frame}
	for {
		hist, ok := b.frames[frame]
		if !ok {
			return chain
		}
		frame = hist.parent
		chain = append(chain, frame)
	}
}

func (b *Buffer) frameKnown(frame string) bool {
	if _, ok := b.frames[frame]; ok {
		return true
	}
	for _, hist := range b.frames {
		if hist.parent == frame {
			return true
		}
	}
	return false
}

// LookupTransform returns the pose of source expressed in target at time at. A zero time looks up
// the latest time at which every transform on the path is available.
func (b *Buffer) LookupTransform(target, source string, at time.Time) (StampedTransform, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup(target, source, at)
}

func (b *Buffer) lookup(target, source string, at time.Time) (StampedTransform, error) {
	for _, frame := range []string{target, source} {
		if !b.frameKnown(frame) {
			return StampedTransform{}, NewFrameNotFoundError(frame)
		}
	}
	if target == source {
		return StampedTransform{Stamp: at, Parent: target, Child: source, Pose: spatialmath.NewZeroPose()}, nil
	}

	sourceChain := b.chain(source)
	targetChain := b.chain(target)
	ancestor := ""
	sourceDepth, targetDepth := -1, -1
	for i, frame := range sourceChain {
		if j := slices.Index(targetChain, frame); j >= 0 {
			ancestor, sourceDepth, targetDepth = frame, i, j
			break
		}
	}
	if sourceDepth < 0 {
		return StampedTransform{}, NewNotConnectedError(target, source)
	}
	path := append(slices.Clone(sourceChain[:sourceDepth]), targetChain[:targetDepth]...)

	if at.IsZero() {
		at = b.latestCommonTime(path)
	}

	sourceInAncestor, err := b.composeTo(sourceChain[:sourceDepth], at)
	if err != nil {
		return StampedTransform{}, err
	}
	targetInAncestor, err := b.composeTo(targetChain[:targetDepth], at)
	if err != nil {
		return StampedTransform{}, err
	}
	b.logger.Debugw("looked up transform", "target", target, "source", source, "via", ancestor)
	return StampedTransform{
		Stamp:  at,
		Parent: target,
		Child:  source,
		Pose:   spatialmath.Compose(spatialmath.PoseInverse(targetInAncestor), sourceInAncestor),
	}, nil
}

// composeTo returns the pose of frames[0] in the parent of the last frame.
func (b *Buffer) composeTo(frames []string, at time.Time) (spatialmath.Pose, error) {
	pose := spatialmath.NewZeroPose()
	for _, frame := range frames {
		p, err := b.frames[frame].poseAt(frame, at)
		if err != nil {
			return nil, err
		}
		pose = spatialmath.Compose(p, pose)
	}
	return pose, nil
}

// latestCommonTime is the oldest of the newest stamps of the dynamic frames in path. A path of
// only static frames has no time constraint and returns the zero time.
func (b *Buffer) latestCommonTime(path []string) time.Time {
	var latest time.Time
	for _, frame := range path {
		hist := b.frames[frame]
		if hist.static || len(hist.samples) == 0 {
			continue
		}
		newest := hist.samples[len(hist.samples)-1].stamp
		if latest.IsZero() || newest.Before(latest) {
			latest = newest
		}
	}
	return latest
}

func (h *frameHistory) poseAt(frame string, at time.Time) (spatialmath.Pose, error) {
	if h.static || at.IsZero() {
		return h.samples[len(h.samples)-1].pose, nil
	}
	oldest, newest := h.samples[0], h.samples[len(h.samples)-1]
	if at.Before(oldest.stamp) || at.After(newest.stamp) {
		return nil, NewExtrapolationError(frame,
			at.Format(time.RFC3339Nano), oldest.stamp.Format(time.RFC3339Nano), newest.stamp.Format(time.RFC3339Nano))
	}
	idx := sort.Search(len(h.samples), func(i int) bool { return !h.samples[i].stamp.Before(at) })
	after := h.samples[idx]
	if after.stamp.Equal(at) {
		return after.pose, nil
	}
	before := h.samples[idx-1]
	by := float64(at.Sub(before.stamp)) / float64(after.stamp.Sub(before.stamp))
	return spatialmath.Interpolate(before.pose, after.pose, by), nil
}

// CanTransform returns whether LookupTransform would succeed.
func (b *Buffer) CanTransform(target, source string, at time.Time) bool {
	_, err := b.LookupTransform(target, source, at)
	return err == nil
}

// WaitForTransform retries LookupTransform every time a transform is added until it succeeds,
// the timeout elapses on the buffer's clock, or ctx is done.
func (b *Buffer) WaitForTransform(
	ctx context.Context,
	target, source string,
	at time.Time,
	timeout time.Duration,
) (StampedTransform, error) {
	timer := b.clk.Timer(timeout)
	defer timer.Stop()
	for {
		b.mu.Lock()
		result, err := b.lookup(target, source, at)
		changed := b.changed
		b.mu.Unlock()
		if err == nil {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return StampedTransform{}, errors.Wrap(ctx.Err(), err.Error())
		case <-timer.C:
			return StampedTransform{}, errors.Wrapf(err, "timed out after %s", timeout)
		case <-changed:
		}
	}
}

// Changed returns a channel that is closed the next time a transform is added.
func (b *Buffer) Changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.changed
}

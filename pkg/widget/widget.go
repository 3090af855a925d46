package widget

import (
	"context"
	"errors"
	"fmt"

	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/node"
)

// ErrIndexOutOfRange is returned by adapter callbacks for index paths that do
// not exist in the displayed snapshot.
var ErrIndexOutOfRange = errors.New("widget: index path out of range")

// Widget is a host list widget that applies edit scripts.
type Widget interface {
	// ApplyBatch applies every operation of u.Script as one atomic batch.
	// After it returns nil the widget displays u.Snapshot.
	ApplyBatch(ctx context.Context, u *Update) error
}

// Func adapts a function to the Widget interface.
type Func func(ctx context.Context, u *Update) error

// ApplyBatch implements Widget.
func (f Func) ApplyBatch(ctx context.Context, u *Update) error {
	return f(ctx, u)
}

// Update is one batch of widget mutations.
type Update struct {
	Seq        uint64          // Monotonic batch number, starting at 1
	Generation uint64          // Provider tree generation the snapshot came from
	Script     *diff.Script    // Operations to apply
	Snapshot   node.Snapshot   // Structure displayed after the batch
	Animation  AnimationConfig // Per-kind animations
}

// AnimationFor returns the animation for an operation kind.
func (u *Update) AnimationFor(k diff.Kind) Animation {
	switch k {
	case diff.InsertSection, diff.InsertRow:
		return u.Animation.Insert
	case diff.DeleteSection, diff.DeleteRow:
		return u.Animation.Delete
	case diff.ReloadSection, diff.ReloadPart, diff.ReloadRow:
		return u.Animation.Reload
	default:
		return None
	}
}

// Animation is a row animation style.
type Animation uint8

const (
	None Animation = iota
	Fade
	Right
	Left
	Top
	Bottom
	Middle
	Automatic
)

// String returns the string representation of the Animation.
func (a Animation) String() string {
	switch a {
	case None:
		return "none"
	case Fade:
		return "fade"
	case Right:
		return "right"
	case Left:
		return "left"
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Middle:
		return "middle"
	case Automatic:
		return "automatic"
	default:
		return fmt.Sprintf("Animation(%d)", a)
	}
}

// ParseAnimation parses the lowercase animation name.
func ParseAnimation(s string) (Animation, error) {
	for a := None; a <= Automatic; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return None, fmt.Errorf("widget: unknown animation %q", s)
}

// AnimationConfig selects the animation per kind of change.
type AnimationConfig struct {
	Insert Animation
	Reload Animation
	Delete Animation
}

// DefaultAnimation fades insertions and deletions and reloads in place.
var DefaultAnimation = AnimationConfig{
	Insert: Fade,
	Reload: None,
	Delete: Fade,
}

// Tee returns a widget that applies each batch to every widget in order,
// stopping at the first error.
func Tee(widgets ...Widget) Widget {
	return Func(func(ctx context.Context, u *Update) error {
		for _, w := range widgets {
			if err := w.ApplyBatch(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

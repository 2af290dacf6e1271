// Package input handles SDL2 input events.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType identifies a processed input event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventWheel
	EventDropFile
	EventPinchStart
	EventPinch
)

// WheelPixels converts one wheel notch to pixels.
const WheelPixels = 100

// PinchPixels converts a normalised multigesture distance to pixels.
const PinchPixels = 1000

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Mod    uint16
	Repeat bool
	Width  int
	Height int
	MouseX int
	MouseY int
	Button uint8

	// Wheel deltas in pixels; positive DeltaY scrolls towards the user.
	DeltaX float32
	DeltaY float32

	// Pinch is the total gesture distance since EventPinchStart; Out is
	// true while the fingers are moving apart.
	Pinch float32
	Out   bool

	Path string
}

// Ctrl reports whether Control or Command was held.
func (e Event) Ctrl() bool {
	return e.Mod&uint16(sdl.KMOD_CTRL|sdl.KMOD_GUI) != 0
}

// Shift reports whether Shift was held.
func (e Event) Shift() bool {
	return e.Mod&uint16(sdl.KMOD_SHIFT) != 0
}

// Input handles all input processing.
type Input struct {
	events  []Event
	pinch   float32
	pinched bool
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update polls SDL events and converts them to workbench events.
// Returns true if the application should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0] // Clear previous events

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})
			return true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{
					Type:   EventWindowResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.KeyboardEvent:
			ev := Event{
				Key:    e.Keysym.Scancode,
				Mod:    e.Keysym.Mod,
				Repeat: e.Repeat != 0,
			}
			if e.Type == sdl.KEYDOWN {
				ev.Type = EventKeyDown
			} else {
				ev.Type = EventKeyUp
			}
			i.events = append(i.events, ev)

		case *sdl.MouseMotionEvent:
			if e.Which == sdl.TOUCH_MOUSEID {
				continue
			}
			i.events = append(i.events, Event{
				Type:   EventMouseMove,
				MouseX: int(e.X),
				MouseY: int(e.Y),
			})

		case *sdl.MouseButtonEvent:
			if e.Which == sdl.TOUCH_MOUSEID {
				continue
			}
			ev := Event{
				MouseX: int(e.X),
				MouseY: int(e.Y),
				Button: e.Button,
			}
			if e.Type == sdl.MOUSEBUTTONDOWN {
				ev.Type = EventMouseDown
			} else {
				ev.Type = EventMouseUp
			}
			i.events = append(i.events, ev)

		case *sdl.MouseWheelEvent:
			dx, dy := float32(e.X), -float32(e.Y)
			if e.Direction == sdl.MOUSEWHEEL_FLIPPED {
				dx, dy = -dx, -dy
			}
			i.events = append(i.events, Event{
				Type:   EventWheel,
				DeltaX: dx * WheelPixels,
				DeltaY: dy * WheelPixels,
			})

		case *sdl.TouchFingerEvent:
			if e.Type == sdl.FINGERUP {
				i.pinched = false
			}

		case *sdl.MultiGestureEvent:
			if e.NumFingers != 2 {
				continue
			}
			if !i.pinched {
				i.pinched = true
				i.pinch = 0
				i.events = append(i.events, Event{Type: EventPinchStart})
			}
			i.pinch += e.DDist * PinchPixels
			total := i.pinch
			out := total > 0
			if !out {
				total = -total
			}
			i.events = append(i.events, Event{
				Type:  EventPinch,
				Pinch: total,
				Out:   out,
			})

		case *sdl.DropEvent:
			if e.Type == sdl.DROPFILE {
				i.events = append(i.events, Event{
					Type: EventDropFile,
					Path: e.File,
				})
			}
		}
	}

	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// IsKeyPressed checks if a specific key was pressed this frame.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}

package canvas

import "github.com/gdamore/tcell/v2"

// Action is what a key press asks the watch loop to do.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionTrigger
	ActionNext
	ActionPrev
	ActionLeft
	ActionRight
	ActionUp
	ActionDown
	ActionToggle
	ActionDrop
)

// MoveStep is how far one arrow press moves a node, in scene units.
const MoveStep = 20.0

// KeyAction maps a key event to an action.
func KeyAction(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyEnter:
		return ActionTrigger
	case tcell.KeyTab:
		return ActionNext
	case tcell.KeyBacktab:
		return ActionPrev
	case tcell.KeyLeft:
		return ActionLeft
	case tcell.KeyRight:
		return ActionRight
	case tcell.KeyUp:
		return ActionUp
	case tcell.KeyDown:
		return ActionDown
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return ActionQuit
		case ' ':
			return ActionTrigger
		case 'a':
			return ActionToggle
		case 'd':
			return ActionDrop
		case 'h':
			return ActionLeft
		case 'l':
			return ActionRight
		case 'k':
			return ActionUp
		case 'j':
			return ActionDown
		}
	}
	return ActionNone
}

// Delta returns the movement for an arrow action.
func (a Action) Delta() (dx, dy float64, ok bool) {
	switch a {
	case ActionLeft:
		return -MoveStep, 0, true
	case ActionRight:
		return MoveStep, 0, true
	case ActionUp:
		return 0, -MoveStep, true
	case ActionDown:
		return 0, MoveStep, true
	}
	return 0, 0, false
}

package browser

// IntentKind identifies a user request.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentUp
	IntentDown
	IntentConfirm
	IntentBack
)

func (k IntentKind) String() string {
	switch k {
	case IntentUp:
		return "up"
	case IntentDown:
		return "down"
	case IntentConfirm:
		return "confirm"
	case IntentBack:
		return "back"
	default:
		return "none"
	}
}

// Intent is one request from the input goroutine.
type Intent struct {
	Kind IntentKind
	// Held marks a long press, which moves a whole page of items.
	Held bool
	// Count repeats a short move; 0 means 1.
	Count int
}

func (i Intent) delta() (int, bool) {
	if i.Held {
		return 0, false
	}
	n := max(i.Count, 1)
	switch i.Kind {
	case IntentDown:
		return n, true
	case IntentUp:
		return -n, true
	}
	return 0, false
}

// mergeIntents keeps back, adds up short moves and otherwise keeps the
// newest intent.
func mergeIntents(pending, next Intent) Intent {
	if pending.Kind == IntentBack {
		return pending
	}
	a, okA := pending.delta()
	b, okB := next.delta()
	if okA && okB {
		sum := a + b
		switch {
		case sum > 0:
			return Intent{Kind: IntentDown, Count: sum}
		case sum < 0:
			return Intent{Kind: IntentUp, Count: -sum}
		default:
			return Intent{Kind: IntentNone}
		}
	}
	return next
}

// DefaultPageItems is the number of list rows on one screen.
const DefaultPageItems = 23

// moveSelection applies a move to sel in a list of n items. Short moves
// wrap around; held moves jump to the first item of the next or previous
// screen of pageItems rows.
func moveSelection(sel, n, pageItems int, in Intent) int {
	if n == 0 {
		return 0
	}
	if in.Held {
		page := sel / pageItems
		switch in.Kind {
		case IntentDown:
			return mod((page+1)*pageItems, n)
		case IntentUp:
			return mod((page-1)*pageItems, n)
		}
		return sel
	}
	d, ok := in.delta()
	if !ok {
		return sel
	}
	return mod(sel+d, n)
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

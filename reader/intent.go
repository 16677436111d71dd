package reader

import "github.com/tsawler/inkpage/model"

// IntentKind identifies a user request.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentNextPage
	IntentPrevPage
	IntentNextSection
	IntentPrevSection
	IntentJump
	// IntentReload reopens the document, e.g. after layout settings changed.
	IntentReload
	IntentBack
)

func (k IntentKind) String() string {
	switch k {
	case IntentNextPage:
		return "next-page"
	case IntentPrevPage:
		return "prev-page"
	case IntentNextSection:
		return "next-section"
	case IntentPrevSection:
		return "prev-section"
	case IntentJump:
		return "jump"
	case IntentReload:
		return "reload"
	case IntentBack:
		return "back"
	default:
		return "none"
	}
}

// Intent is one request from the input goroutine.
type Intent struct {
	Kind IntentKind
	// Count is the number of pages for page turns; 0 means 1.
	Count int
	// Target is the destination of IntentJump.
	Target model.Position
}

// delta returns the signed page move of a page-turn intent.
func (i Intent) delta() (int, bool) {
	n := max(i.Count, 1)
	switch i.Kind {
	case IntentNextPage:
		return n, true
	case IntentPrevPage:
		return -n, true
	}
	return 0, false
}

// mergeIntents combines a pending intent with a newer one. Page turns add
// up, back is never lost, anything else replaces what was pending.
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
			return Intent{Kind: IntentNextPage, Count: sum}
		case sum < 0:
			return Intent{Kind: IntentPrevPage, Count: -sum}
		default:
			return Intent{Kind: IntentNone}
		}
	}
	return next
}

package prefetch

import "github.com/tsawler/inkpage/model"

// Source is the part of a document the ring needs.
type Source interface {
	SectionCount() int
	PageCount(section int) (int, error)
	LoadPage(pos model.Position) (*model.Page, error)
}

// Next returns the position after pos, crossing into the next non-empty
// section at a section end. ok is false at the end of the document.
//
// A section whose page count fails is a stop of its own at page 0, so the
// caller can report it and the following move passes it. Leaving such a
// section moves on to the next one.
func Next(src Source, pos model.Position) (next model.Position, ok bool, err error) {
	if n, err := src.PageCount(pos.Section); err == nil && pos.Page+1 < n {
		return model.Position{Section: pos.Section, Page: pos.Page + 1}, true, nil
	}
	for s := pos.Section + 1; s < src.SectionCount(); s++ {
		n, err := src.PageCount(s)
		if err != nil || n > 0 {
			return model.Position{Section: s}, true, nil
		}
	}
	return pos, false, nil
}

// Prev returns the position before pos, crossing into the last page of the
// previous non-empty section. ok is false at the start of the document. A
// damaged section is stopped at page 0, as in Next.
func Prev(src Source, pos model.Position) (prev model.Position, ok bool, err error) {
	if pos.Page > 0 {
		return model.Position{Section: pos.Section, Page: pos.Page - 1}, true, nil
	}
	for s := pos.Section - 1; s >= 0; s-- {
		n, err := src.PageCount(s)
		if err != nil {
			return model.Position{Section: s}, true, nil
		}
		if n > 0 {
			return model.Position{Section: s, Page: n - 1}, true, nil
		}
	}
	return pos, false, nil
}

// Step moves one page in dir; Unknown counts as forward.
func Step(src Source, pos model.Position, dir model.Direction) (model.Position, bool, error) {
	if dir == model.DirectionBackward {
		return Prev(src, pos)
	}
	return Next(src, pos)
}

// Clamp returns the valid position closest to pos. Sections outside the
// document snap to the first or last section, pages to the first or last
// page of their section.
func Clamp(src Source, pos model.Position) (model.Position, error) {
	sections := src.SectionCount()
	if sections == 0 {
		return model.Position{}, nil
	}
	pos.Section = max(0, min(pos.Section, sections-1))
	n, err := src.PageCount(pos.Section)
	if err != nil {
		return pos, err
	}
	pos.Page = max(0, min(pos.Page, n-1))
	return pos, nil
}

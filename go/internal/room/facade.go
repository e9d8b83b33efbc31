package room

import (
	"fmt"

	"github.com/moonhowl/werewolf/go/internal/catalog"
)

// wolfVoteChangeHint is appended to the vote summary once the local wolf
// has a ballot on record and may still click to change or cancel it.
const wolfVoteChangeHint = "（可点击改票或取消）"

// WitchContext is the witch's private view of tonight's pending outcome.
type WitchContext struct {
	VictimSeat int // 0 when the wolves have no majority target yet
	CanHeal    bool
	CanPoison  bool
}

// FacadeDeps is the injected read-only dependency bag. Everything is passed
// explicitly so the facade stays independently testable; nil members simply
// disable the derivations that need them.
type FacadeDeps struct {
	HasWolfVoted    func() bool
	WolfVoteSummary func() string
	WitchContext    func() *WitchContext
	Roles           RoleCatalog
}

// Facade derives presentation strings from GameContext. Every method is a
// pure function of the context plus the injected dependencies: no network,
// no storage, no side effects, and never a panic on partial input.
type Facade struct {
	deps FacadeDeps
}

// NewFacade creates a facade over the dependency bag.
func NewFacade(deps FacadeDeps) *Facade {
	return &Facade{deps: deps}
}

// WolfStatusLine derives the wolf voting status line. The second return is
// false for every non-wolf role and for every schema other than wolfVote,
// regardless of the other inputs.
func (f *Facade) WolfStatusLine(gc GameContext) (string, bool) {
	if f.deps.Roles == nil || !f.deps.Roles.IsWolfRole(gc.ActorRole) {
		return "", false
	}
	if gc.CurrentSchema == nil || gc.CurrentSchema.Kind != catalog.KindWolfVote {
		return "", false
	}
	if f.deps.WolfVoteSummary == nil {
		return "", false
	}
	summary := f.deps.WolfVoteSummary()
	voted := f.deps.HasWolfVoted != nil && f.deps.HasWolfVoted()
	// An unseated actor (seat 0) takes the hint branch too. That mirrors
	// the long-standing client behavior; see the note in DESIGN.md before
	// changing it.
	if voted || gc.ActorSeatNumber <= 0 {
		return summary + wolfVoteChangeHint, true
	}
	return summary, true
}

// WitchStatusLine derives the witch's prompt for the night action.
func (f *Facade) WitchStatusLine(gc GameContext) (string, bool) {
	if gc.ActorRole != catalog.RoleWitch || !gc.ImActioner {
		return "", false
	}
	if f.deps.WitchContext == nil {
		return "", false
	}
	wc := f.deps.WitchContext()
	if wc == nil {
		return "", false
	}
	switch {
	case wc.VictimSeat > 0 && wc.CanHeal:
		return fmt.Sprintf("今晚 %d 号位倒牌，是否使用解药？", wc.VictimSeat), true
	case wc.CanPoison:
		return "是否使用毒药？", true
	}
	return "今晚无法用药", true
}

// ActionPrompt derives the generic instruction line for the active schema.
func (f *Facade) ActionPrompt(gc GameContext) (string, bool) {
	if !gc.ImActioner || gc.CurrentSchema == nil {
		return "", false
	}
	switch gc.CurrentSchema.Kind {
	case catalog.KindWolfVote:
		return "请选择今晚袭击的目标", true
	case catalog.KindChooseSeat:
		return "请选择一名玩家", true
	case catalog.KindSwapSeats:
		if gc.FirstSwapSeat > 0 {
			return fmt.Sprintf("已选中 %d 号位，请选择要交换的另一个座位", gc.FirstSwapSeat), true
		}
		return "请选择要交换的第一个座位", true
	case catalog.KindConfirm:
		return "请确认", true
	case catalog.KindFreeText:
		return "请输入内容", true
	}
	return "", false
}

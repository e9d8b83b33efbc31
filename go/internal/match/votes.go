package match

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/moonhowl/werewolf/go/internal/catalog"
)

// WolfChecker is the slice of the role catalog that vote tallying needs.
type WolfChecker interface {
	IsWolfRole(id catalog.RoleID) bool
}

// TargetPayload is the payload shape of single-target actions.
type TargetPayload struct {
	Target int `json:"target"`
}

// VoteSummary is an on-demand tally of the current round's wolf votes. It is
// derived from the action log and never stored as primary state.
type VoteSummary struct {
	Voted    int
	Eligible int
	Ballots  map[int]int // voter seat -> target seat
}

// String renders the tally in the form shown to wolf-family players.
func (v VoteSummary) String() string {
	return fmt.Sprintf("%d/%d 狼人已投票", v.Voted, v.Eligible)
}

// TallyWolfVotes aggregates the current round's wolf votes. Malformed log
// payloads are skipped rather than surfaced; derivations never fail.
func TallyWolfVotes(st *State, roles WolfChecker) VoteSummary {
	sum := VoteSummary{Ballots: make(map[int]int)}
	if st == nil || roles == nil {
		return sum
	}
	for _, seat := range st.Seats {
		if seat.Alive && roles.IsWolfRole(seat.Role) {
			sum.Eligible++
		}
	}
	for _, rec := range st.Log {
		if rec.Round != st.Round || rec.Kind != catalog.KindWolfVote {
			continue
		}
		var payload TargetPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			continue
		}
		if _, dup := sum.Ballots[rec.Seat]; !dup {
			sum.Voted++
		}
		sum.Ballots[rec.Seat] = payload.Target
	}
	return sum
}

// HasVoted reports whether a seat has a wolf vote recorded this round.
func (v VoteSummary) HasVoted(seat int) bool {
	_, ok := v.Ballots[seat]
	return ok
}

// Leaders returns the target seats with the highest ballot count. More than
// one entry means a tie the host must break.
func (v VoteSummary) Leaders() []int {
	counts := make(map[int]int)
	best := 0
	for _, target := range v.Ballots {
		counts[target]++
		if counts[target] > best {
			best = counts[target]
		}
	}
	var leaders []int
	for target, n := range counts {
		if n == best {
			leaders = append(leaders, target)
		}
	}
	sort.Ints(leaders) // deterministic input to the host's tie-break
	return leaders
}

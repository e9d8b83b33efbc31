package room

import (
	"testing"

	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/stretchr/testify/require"
)

func wolfVoteCtx(role catalog.RoleID, seat int) GameContext {
	schema := catalog.SchemaFor(catalog.KindWolfVote)
	return GameContext{
		CurrentSchema:   &schema,
		ActorRole:       role,
		ActorSeatNumber: seat,
	}
}

func facadeWith(voted bool, summary string) *Facade {
	return NewFacade(FacadeDeps{
		HasWolfVoted:    func() bool { return voted },
		WolfVoteSummary: func() string { return summary },
		Roles:           catalog.Default(),
	})
}

func TestWolfStatusLineBeforeVoting(t *testing.T) {
	f := facadeWith(false, "0/3 狼人已投票")

	line, ok := f.WolfStatusLine(wolfVoteCtx(catalog.RoleWolf, 2))
	require.True(t, ok)
	require.Equal(t, "0/3 狼人已投票", line)
}

func TestWolfStatusLineAfterVoting(t *testing.T) {
	f := facadeWith(true, "1/3 狼人已投票")

	line, ok := f.WolfStatusLine(wolfVoteCtx(catalog.RoleWolf, 2))
	require.True(t, ok)
	require.Equal(t, "1/3 狼人已投票（可点击改票或取消）", line)
}

func TestWolfStatusLineUnseatedActorGetsHint(t *testing.T) {
	f := facadeWith(false, "0/3 狼人已投票")

	line, ok := f.WolfStatusLine(wolfVoteCtx(catalog.RoleWolf, 0))
	require.True(t, ok)
	require.Equal(t, "0/3 狼人已投票（可点击改票或取消）", line)
}

func TestWolfStatusLineHiddenForOtherRolesAndKinds(t *testing.T) {
	f := facadeWith(true, "1/3 狼人已投票")

	_, ok := f.WolfStatusLine(wolfVoteCtx(catalog.RoleSeer, 1))
	require.False(t, ok)

	_, ok = f.WolfStatusLine(wolfVoteCtx(catalog.RoleVillager, 5))
	require.False(t, ok)

	// Wolf role but a non-vote schema.
	schema := catalog.SchemaFor(catalog.KindConfirm)
	_, ok = f.WolfStatusLine(GameContext{CurrentSchema: &schema, ActorRole: catalog.RoleWolf, ActorSeatNumber: 2})
	require.False(t, ok)

	// No schema at all.
	_, ok = f.WolfStatusLine(GameContext{ActorRole: catalog.RoleWolf, ActorSeatNumber: 2})
	require.False(t, ok)
}

func TestWolfStatusLineWolfKingCounts(t *testing.T) {
	f := facadeWith(false, "2/3 狼人已投票")

	line, ok := f.WolfStatusLine(wolfVoteCtx(catalog.RoleWolfKing, 4))
	require.True(t, ok)
	require.Equal(t, "2/3 狼人已投票", line)
}

func TestWolfStatusLineNilDeps(t *testing.T) {
	f := NewFacade(FacadeDeps{})

	_, ok := f.WolfStatusLine(wolfVoteCtx(catalog.RoleWolf, 2))
	require.False(t, ok)
}

func TestWitchStatusLine(t *testing.T) {
	wc := &WitchContext{}
	f := NewFacade(FacadeDeps{
		WitchContext: func() *WitchContext { return wc },
		Roles:        catalog.Default(),
	})
	gc := GameContext{ActorRole: catalog.RoleWitch, ImActioner: true}

	wc.VictimSeat, wc.CanHeal = 3, true
	line, ok := f.WitchStatusLine(gc)
	require.True(t, ok)
	require.Equal(t, "今晚 3 号位倒牌，是否使用解药？", line)

	wc.VictimSeat, wc.CanHeal, wc.CanPoison = 0, false, true
	line, ok = f.WitchStatusLine(gc)
	require.True(t, ok)
	require.Equal(t, "是否使用毒药？", line)

	wc.CanPoison = false
	line, ok = f.WitchStatusLine(gc)
	require.True(t, ok)
	require.Equal(t, "今晚无法用药", line)

	gc.ImActioner = false
	_, ok = f.WitchStatusLine(gc)
	require.False(t, ok)
}

func TestActionPrompt(t *testing.T) {
	f := NewFacade(FacadeDeps{Roles: catalog.Default()})

	for _, tt := range []struct {
		kind      catalog.ActionKind
		firstSwap int
		want      string
	}{
		{catalog.KindWolfVote, 0, "请选择今晚袭击的目标"},
		{catalog.KindChooseSeat, 0, "请选择一名玩家"},
		{catalog.KindSwapSeats, 0, "请选择要交换的第一个座位"},
		{catalog.KindSwapSeats, 4, "已选中 4 号位，请选择要交换的另一个座位"},
		{catalog.KindConfirm, 0, "请确认"},
		{catalog.KindFreeText, 0, "请输入内容"},
	} {
		schema := catalog.SchemaFor(tt.kind)
		gc := GameContext{CurrentSchema: &schema, ImActioner: true, FirstSwapSeat: tt.firstSwap}
		line, ok := f.ActionPrompt(gc)
		require.True(t, ok, string(tt.kind))
		require.Equal(t, tt.want, line)
	}

	_, ok := f.ActionPrompt(GameContext{ImActioner: true})
	require.False(t, ok)
}

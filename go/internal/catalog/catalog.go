package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// RoleID identifies a role in the catalog.
type RoleID string

const (
	RoleVillager RoleID = "villager"
	RoleWolf     RoleID = "wolf"
	RoleWolfKing RoleID = "wolfKing"
	RoleSeer     RoleID = "seer"
	RoleWitch    RoleID = "witch"
	RoleGuard    RoleID = "guard"
	RoleHunter   RoleID = "hunter"
	RoleMagician RoleID = "magician"
)

// Family groups roles by faction alignment.
type Family string

const (
	FamilyWolf    Family = "wolf"
	FamilyVillage Family = "village"
	FamilyNeutral Family = "neutral"
)

// ActionKind is the discriminant tag of an ActionSchema. Every switch over
// an ActionKind must enumerate all kinds so that adding a kind breaks loudly
// at every consumption site.
type ActionKind string

const (
	KindWolfVote   ActionKind = "wolfVote"
	KindChooseSeat ActionKind = "chooseSeat"
	KindSwapSeats  ActionKind = "swapSeats"
	KindConfirm    ActionKind = "confirm"
	KindFreeText   ActionKind = "freeText"
)

// TargetMode is the target cardinality of an action kind.
type TargetMode int

const (
	TargetsNone TargetMode = iota
	TargetsSingle
	TargetsPair
)

// TargetMode returns the target cardinality for the kind.
func (k ActionKind) TargetMode() TargetMode {
	switch k {
	case KindWolfVote, KindChooseSeat:
		return TargetsSingle
	case KindSwapSeats:
		return TargetsPair
	case KindConfirm, KindFreeText:
		return TargetsNone
	}
	return TargetsNone
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case KindWolfVote, KindChooseSeat, KindSwapSeats, KindConfirm, KindFreeText:
		return true
	}
	return false
}

// ActionSchema describes the legal shape of a turn's input.
type ActionSchema struct {
	Kind        ActionKind `yaml:"kind" json:"kind"`
	AllowSelf   bool       `yaml:"allow_self" json:"allow_self"`
	AllowRevise bool       `yaml:"allow_revise" json:"allow_revise"`
}

// RoleSpec describes one role: its faction and the night action it exposes,
// if any.
type RoleSpec struct {
	ID          RoleID        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Family      Family        `yaml:"family" json:"family"`
	NightAction *ActionSchema `yaml:"night_action,omitempty" json:"night_action,omitempty"`
	NightOrder  int           `yaml:"night_order" json:"night_order"` // 0 = does not act at night
}

// Catalog is the role/action catalog. It is immutable after construction.
type Catalog struct {
	roles map[RoleID]RoleSpec
	night []RoleID // roles that act at night, in order
}

// New builds a catalog from role specs.
func New(specs []RoleSpec) (*Catalog, error) {
	c := &Catalog{roles: make(map[RoleID]RoleSpec, len(specs))}
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("role spec missing id")
		}
		if _, dup := c.roles[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate role id %q", spec.ID)
		}
		if spec.NightAction != nil && !spec.NightAction.Kind.Valid() {
			return nil, fmt.Errorf("role %q: unknown action kind %q", spec.ID, spec.NightAction.Kind)
		}
		c.roles[spec.ID] = spec
		if spec.NightOrder > 0 && spec.NightAction != nil {
			c.night = append(c.night, spec.ID)
		}
	}
	sort.Slice(c.night, func(i, j int) bool {
		return c.roles[c.night[i]].NightOrder < c.roles[c.night[j]].NightOrder
	})
	return c, nil
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var doc struct {
		Roles []RoleSpec `yaml:"roles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(doc.Roles)
}

// Default returns the built-in role set used when no catalog file is
// configured.
func Default() *Catalog {
	c, err := New([]RoleSpec{
		{ID: RoleVillager, Name: "村民", Family: FamilyVillage},
		{ID: RoleWolf, Name: "狼人", Family: FamilyWolf,
			NightAction: &ActionSchema{Kind: KindWolfVote, AllowRevise: true}, NightOrder: 20},
		{ID: RoleWolfKing, Name: "狼王", Family: FamilyWolf,
			NightAction: &ActionSchema{Kind: KindWolfVote, AllowRevise: true}, NightOrder: 20},
		{ID: RoleMagician, Name: "魔术师", Family: FamilyVillage,
			NightAction: &ActionSchema{Kind: KindSwapSeats}, NightOrder: 10},
		{ID: RoleSeer, Name: "预言家", Family: FamilyVillage,
			NightAction: &ActionSchema{Kind: KindChooseSeat}, NightOrder: 30},
		{ID: RoleWitch, Name: "女巫", Family: FamilyVillage,
			NightAction: &ActionSchema{Kind: KindChooseSeat, AllowSelf: true}, NightOrder: 40},
		{ID: RoleGuard, Name: "守卫", Family: FamilyVillage,
			NightAction: &ActionSchema{Kind: KindChooseSeat, AllowSelf: true}, NightOrder: 15},
		{ID: RoleHunter, Name: "猎人", Family: FamilyVillage},
	})
	if err != nil {
		panic(err) // built-in set is static
	}
	return c
}

// RoleSpec returns the spec for a role id.
func (c *Catalog) RoleSpec(id RoleID) (RoleSpec, bool) {
	spec, ok := c.roles[id]
	return spec, ok
}

// IsWolfRole reports whether the role belongs to the wolf family.
func (c *Catalog) IsWolfRole(id RoleID) bool {
	spec, ok := c.roles[id]
	return ok && spec.Family == FamilyWolf
}

// AllRoleIDs returns every role id in the catalog, sorted for determinism.
func (c *Catalog) AllRoleIDs() []RoleID {
	ids := make([]RoleID, 0, len(c.roles))
	for id := range c.roles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NightOrder returns the role ids that act at night, in acting order.
func (c *Catalog) NightOrder() []RoleID {
	out := make([]RoleID, len(c.night))
	copy(out, c.night)
	return out
}

// SchemaFor returns the default schema for an action kind, used when the
// active cursor does not come from a role's own night action (e.g. the day
// vote, which every living seat shares).
func SchemaFor(kind ActionKind) ActionSchema {
	switch kind {
	case KindWolfVote:
		return ActionSchema{Kind: KindWolfVote, AllowRevise: true}
	case KindChooseSeat:
		return ActionSchema{Kind: KindChooseSeat}
	case KindSwapSeats:
		return ActionSchema{Kind: KindSwapSeats}
	case KindConfirm:
		return ActionSchema{Kind: KindConfirm}
	case KindFreeText:
		return ActionSchema{Kind: KindFreeText}
	}
	return ActionSchema{Kind: kind}
}

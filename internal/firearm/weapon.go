// Package firearm implements charge tracking, reload prompting, and misfire
// resolution for muzzle-loading firearms on a virtual tabletop host.
//
// A fire attempt flows Classifier → ChargeTracker → (ReloadInteraction) →
// misfire evaluation → consumption, and yields an allow/deny Verdict that the
// host uses to gate the attack roll.
package firearm

import (
	"errors"
	"fmt"
)

// Weapon document field paths written through host.Documents.Update.
const (
	FieldUsesValue = "system.uses.value"
	FieldUsesMax   = "system.uses.max"
	FieldEquipped  = "system.equipped"
	FieldRarity    = "system.rarity"
)

// ErrWeaponExists is returned by weapon stores asked to create a document
// whose ID is already stored.
var ErrWeaponExists = errors.New("weapon already exists")

// DefaultFlagNamespace scopes the isFirearm flag away from host-native flags.
const DefaultFlagNamespace = "firearm-charge-management"

// FlagIsFirearm is the flag key persisted on classified weapons.
const FlagIsFirearm = "isFirearm"

// Classification tags a weapon as subject to firearm rules or not.
// The zero value is ClassificationStandard.
type Classification int

const (
	ClassificationStandard      Classification = iota // not handled by this package
	ClassificationMuzzleLoading                       // charge, reload and misfire rules apply
)

// String returns "standard" or "muzzle-loading".
func (c Classification) String() string {
	switch c {
	case ClassificationMuzzleLoading:
		return "muzzle-loading"
	default:
		return "standard"
	}
}

// Rarity is the host's item rarity. Anything above common counts as magical.
type Rarity string

const (
	RarityNone      Rarity = ""
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityVeryRare  Rarity = "veryRare"
	RarityLegendary Rarity = "legendary"
	RarityArtifact  Rarity = "artifact"
)

// Actor is the character wielding a weapon.
type Actor struct {
	ID   string
	Name string
}

// Weapon is a snapshot of one weapon document taken when a host event arrives.
// Invariant: 0 <= CurrentCharge <= MaxCharge for well-formed host data.
type Weapon struct {
	// ID is the host document ID.
	ID string
	// Name is matched against the Registry at creation time only.
	Name string
	// Img is the item image reference used on chat entries.
	Img string
	// Rarity decides IsMagical.
	Rarity Rarity
	// CurrentCharge is system.uses.value.
	CurrentCharge int
	// MaxCharge is system.uses.max.
	MaxCharge int
	// Equipped is system.equipped; set false by a catastrophic misfire.
	Equipped bool
	// Classification is filled in by Classifier.Tag or Classifier.IsFirearm.
	Classification Classification
}

// IsMagical reports whether the weapon's rarity is above common.
func (w *Weapon) IsMagical() bool {
	return w.Rarity != RarityNone && w.Rarity != RarityCommon
}

// Validate checks the charge invariants of a weapon snapshot.
//
// Postcondition: returns nil iff ID is set, MaxCharge >= 0 and CurrentCharge <= MaxCharge.
func (w *Weapon) Validate() error {
	var errs []error
	if w.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if w.MaxCharge < 0 {
		errs = append(errs, fmt.Errorf("MaxCharge must be >= 0, got %d", w.MaxCharge))
	}
	if w.CurrentCharge > w.MaxCharge {
		errs = append(errs, fmt.Errorf("CurrentCharge %d exceeds MaxCharge %d", w.CurrentCharge, w.MaxCharge))
	}
	if len(errs) > 0 {
		return fmt.Errorf("weapon validation failed: %v", errs)
	}
	return nil
}

// FireAttempt is one pending attack roll handed over by the host middleware.
// It is consumed by a single Resolver.Resolve call and never stored.
type FireAttempt struct {
	Actor  *Actor
	Weapon *Weapon
	// AttackRollTotal is the roll the host engine already produced.
	AttackRollTotal int
	// HasDisadvantage mirrors the host roll mode.
	HasDisadvantage bool
}

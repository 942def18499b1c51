package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
)

// ErrWeaponNotFound is returned when a weapon lookup or write matches no row.
var ErrWeaponNotFound = errors.New("weapon not found")

// ErrWeaponExists is returned when creating a weapon whose ID is already stored.
var ErrWeaponExists = firearm.ErrWeaponExists

// ErrUnknownField is returned when a document path has no backing column.
var ErrUnknownField = errors.New("unknown weapon field")

// fieldColumns maps document field paths onto weapons table columns.
var fieldColumns = map[string]string{
	firearm.FieldUsesValue: "uses_value",
	firearm.FieldUsesMax:   "uses_max",
	firearm.FieldEquipped:  "equipped",
	firearm.FieldRarity:    "rarity",
}

// WeaponRepository stores weapon documents. It implements host.Documents and
// host.FieldReader.
type WeaponRepository struct {
	db *pgxpool.Pool
}

// NewWeaponRepository creates a WeaponRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewWeaponRepository(db *pgxpool.Pool) *WeaponRepository {
	return &WeaponRepository{db: db}
}

// Create inserts a weapon owned by actorID.
//
// Precondition: w.ID and w.Name must be non-empty.
// Postcondition: Returns nil on success or ErrWeaponExists on a duplicate ID.
func (r *WeaponRepository) Create(ctx context.Context, w *firearm.Weapon, actorID string) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO weapons (id, actor_id, name, img, rarity, uses_value, uses_max, equipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, actorID, w.Name, w.Img, string(w.Rarity), w.CurrentCharge, w.MaxCharge, w.Equipped,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrWeaponExists
		}
		return fmt.Errorf("inserting weapon: %w", err)
	}
	return nil
}

// Get loads the weapon snapshot for id. Classification is left at its zero
// value; the firearm Classifier fills it from the stored flag.
//
// Postcondition: Returns the Weapon or ErrWeaponNotFound.
func (r *WeaponRepository) Get(ctx context.Context, id string) (*firearm.Weapon, error) {
	var (
		w      firearm.Weapon
		rarity string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, img, rarity, uses_value, uses_max, equipped
		FROM weapons WHERE id = $1`,
		id,
	).Scan(&w.ID, &w.Name, &w.Img, &rarity, &w.CurrentCharge, &w.MaxCharge, &w.Equipped)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWeaponNotFound
		}
		return nil, fmt.Errorf("querying weapon: %w", err)
	}
	w.Rarity = firearm.Rarity(rarity)
	return &w, nil
}

// Update implements host.Documents. Every key of changes must be a known
// field path; the whole change set is written in one statement.
//
// Postcondition: Returns nil on success, ErrUnknownField for an unmapped path,
// or ErrWeaponNotFound if no row was updated.
func (r *WeaponRepository) Update(ctx context.Context, weaponID string, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	paths := make([]string, 0, len(changes))
	for p := range changes {
		if _, ok := fieldColumns[p]; !ok {
			return fmt.Errorf("updating %q: %w: %s", weaponID, ErrUnknownField, p)
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	sets := make([]string, 0, len(paths)+1)
	args := []any{weaponID}
	for _, p := range paths {
		args = append(args, changes[p])
		sets = append(sets, fmt.Sprintf("%s = $%d", fieldColumns[p], len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	tag, err := r.db.Exec(ctx,
		"UPDATE weapons SET "+strings.Join(sets, ", ")+" WHERE id = $1",
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating weapon %q: %w", weaponID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWeaponNotFound
	}
	return nil
}

// Fields implements host.FieldReader.
//
// Postcondition: the returned map holds exactly the requested known paths,
// or the error is ErrWeaponNotFound or ErrUnknownField.
func (r *WeaponRepository) Fields(ctx context.Context, weaponID string, paths ...string) (map[string]any, error) {
	for _, p := range paths {
		if _, ok := fieldColumns[p]; !ok {
			return nil, fmt.Errorf("reading %q: %w: %s", weaponID, ErrUnknownField, p)
		}
	}
	var (
		usesValue, usesMax int
		equipped           bool
		rarity             string
	)
	err := r.db.QueryRow(ctx, `
		SELECT uses_value, uses_max, equipped, rarity FROM weapons WHERE id = $1`,
		weaponID,
	).Scan(&usesValue, &usesMax, &equipped, &rarity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWeaponNotFound
		}
		return nil, fmt.Errorf("reading weapon %q: %w", weaponID, err)
	}
	row := map[string]any{
		firearm.FieldUsesValue: usesValue,
		firearm.FieldUsesMax:   usesMax,
		firearm.FieldEquipped:  equipped,
		firearm.FieldRarity:    rarity,
	}
	out := make(map[string]any, len(paths))
	for _, p := range paths {
		out[p] = row[p]
	}
	return out, nil
}

// GetFlag implements host.Documents. Flag values are stored as JSON and
// decoded into Go values (bool, float64, string, map, slice).
//
// Postcondition: ok is false when the flag is unset or no row exists for
// weaponID.
func (r *WeaponRepository) GetFlag(ctx context.Context, weaponID, namespace, key string) (any, bool, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `
		SELECT flags #> $2::text[] FROM weapons WHERE id = $1`,
		weaponID, []string{namespace, key},
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading flag %s.%s on %q: %w", namespace, key, weaponID, err)
	}
	if raw == nil {
		return nil, false, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("decoding flag %s.%s on %q: %w", namespace, key, weaponID, err)
	}
	return v, true, nil
}

// SetFlag implements host.Documents.
//
// Precondition: value must be JSON-encodable.
// Postcondition: Returns nil on success or ErrWeaponNotFound.
func (r *WeaponRepository) SetFlag(ctx context.Context, weaponID, namespace, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding flag %s.%s: %w", namespace, key, err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE weapons
		SET flags = jsonb_set(
		        flags,
		        ARRAY[$2::text],
		        COALESCE(flags -> $2::text, '{}'::jsonb) || jsonb_build_object($3::text, $4::jsonb)
		    ),
		    updated_at = NOW()
		WHERE id = $1`,
		weaponID, namespace, key, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("setting flag %s.%s on %q: %w", namespace, key, weaponID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWeaponNotFound
	}
	return nil
}

// ListByActor returns the weapons owned by actorID, ordered by name.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *WeaponRepository) ListByActor(ctx context.Context, actorID string) ([]*firearm.Weapon, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, img, rarity, uses_value, uses_max, equipped
		FROM weapons WHERE actor_id = $1 ORDER BY name ASC, id ASC`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing weapons: %w", err)
	}
	defer rows.Close()

	out := make([]*firearm.Weapon, 0)
	for rows.Next() {
		var (
			w      firearm.Weapon
			rarity string
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.Img, &rarity, &w.CurrentCharge, &w.MaxCharge, &w.Equipped); err != nil {
			return nil, fmt.Errorf("scanning weapon row: %w", err)
		}
		w.Rarity = firearm.Rarity(rarity)
		out = append(out, &w)
	}
	return out, rows.Err()
}

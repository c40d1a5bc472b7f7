package selection_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/selection"
)

func requires(ids ...string) []catalog.Constraint {
	return []catalog.Constraint{catalog.RequiresOptions{IDs: ids}}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("TEST",
		catalog.Category{
			ID: "models", Cardinality: catalog.ExactlyOne, Role: catalog.RoleModel,
			Options: []catalog.Option{
				{ID: "base", Code: "BASE", Price: decimal.NewFromInt(10000)},
				{ID: "pro", Code: "PRO", Price: decimal.NewFromInt(12000)},
			},
		},
		catalog.Category{
			ID: "upgrades", Cardinality: catalog.Any,
			Options: []catalog.Option{
				{ID: "auto", Code: "AUTO", Price: decimal.NewFromInt(1000)},
				{ID: "190hp", Code: "190HP", Constraints: requires("auto")},
				{ID: "4x4", Code: "4X4", Constraints: []catalog.Constraint{
					catalog.RequiresOptions{IDs: []string{"auto", "190hp"}},
					catalog.RequiresCategoryChoice{OptionID: "pro"},
				}},
				{ID: "a", Code: "A"},
				{ID: "b", Code: "B", Constraints: requires("a")},
				{ID: "c", Code: "C", Constraints: requires("b")},
			},
		},
		catalog.Category{
			ID: "colour", Cardinality: catalog.ExactlyOne,
			Options: []catalog.Option{
				{ID: "white", Code: "WHITE"},
				{
					ID: "metallic", Code: "MET", AutoSelectFirstAddon: true,
					Addons: []catalog.Addon{
						{ID: "ferro", Code: "FE"},
						{ID: "graphito", Code: "GR"},
					},
				},
			},
		},
		catalog.Category{
			ID: "extras", Cardinality: catalog.Any, Role: catalog.RoleExtra,
			Options: []catalog.Option{{ID: "mat", Code: "MAT"}},
		},
	)
	require.NoError(t, err)
	return c
}

func toggle(t *testing.T, s *selection.Selection, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := s.Toggle(id)
		require.NoError(t, err, id)
	}
}

func TestDeselectCascadesTransitively(t *testing.T) {
	s := selection.New(testCatalog(t))
	toggle(t, s, "a", "b", "c")

	ch, err := s.Toggle("a")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ch.Deselected)
	require.False(t, s.IsActive("b"))
	require.False(t, s.IsActive("c"))
	require.Empty(t, s.Selected())
}

func TestSelectRejectsUnmetConstraints(t *testing.T) {
	s := selection.New(testCatalog(t))
	toggle(t, s, "base")

	_, err := s.Toggle("190hp")
	require.ErrorIs(t, err, selection.ErrConstraintViolation)
	var ce *selection.ConstraintError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, []string{"auto"}, ce.Missing)
	require.Equal(t, []string{"base"}, s.Selected())

	ok, err := s.IsSelectable("190hp")
	require.NoError(t, err)
	require.False(t, ok)

	toggle(t, s, "auto")
	ok, err = s.IsSelectable("190hp")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExactlyOneReplacesAndRevalidates(t *testing.T) {
	s := selection.New(testCatalog(t))
	toggle(t, s, "pro", "auto", "190hp", "4x4")
	require.True(t, s.IsActive("4x4"))

	ch, err := s.Toggle("base")
	require.NoError(t, err)
	require.Equal(t, []string{"base"}, ch.Selected)
	require.Equal(t, []string{"pro", "4x4"}, ch.Deselected)
	require.Equal(t, []string{"auto", "190hp", "base"}, s.Selected())
	require.Len(t, s.ActiveIn("models"), 1)

	model, ok := s.ModelOption()
	require.True(t, ok)
	require.Equal(t, "base", model.ID)
}

func TestExactlyOneNeverHoldsTwo(t *testing.T) {
	s := selection.New(testCatalog(t))
	for _, id := range []string{"base", "pro", "base", "white", "metallic", "pro", "white"} {
		_, err := s.Toggle(id)
		require.NoError(t, err)
		require.LessOrEqual(t, len(s.ActiveIn("models")), 1)
		require.LessOrEqual(t, len(s.ActiveIn("colour")), 1)
	}
}

func TestAddons(t *testing.T) {
	s := selection.New(testCatalog(t))

	ch, err := s.Toggle("metallic")
	require.NoError(t, err)
	require.Equal(t, []string{"metallic", "ferro"}, ch.Selected)
	ad, ok := s.AddonOf("metallic")
	require.True(t, ok)
	require.Equal(t, "ferro", ad.ID)

	ch, err = s.Toggle("graphito")
	require.NoError(t, err)
	require.Equal(t, []string{"graphito"}, ch.Selected)
	require.Equal(t, []string{"ferro"}, ch.Deselected)
	require.True(t, s.IsActive("graphito"))
	require.False(t, s.IsActive("ferro"))

	ch, err = s.Toggle("white")
	require.NoError(t, err)
	require.Equal(t, []string{"metallic", "graphito"}, ch.Deselected)
	_, ok = s.AddonOf("metallic")
	require.False(t, ok)

	ch, err = s.Toggle("graphito")
	require.NoError(t, err)
	require.Equal(t, []string{"metallic", "graphito"}, ch.Selected)
	require.Equal(t, []string{"white"}, ch.Deselected)
	require.Equal(t, []string{"metallic"}, s.ActiveIn("colour"))
	ad, _ = s.AddonOf("metallic")
	require.Equal(t, "graphito", ad.ID)
}

func TestUnknownIDs(t *testing.T) {
	s := selection.New(testCatalog(t))
	_, err := s.Toggle("nope")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = s.IsSelectable("nope")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestExtrasAreListedApart(t *testing.T) {
	s := selection.New(testCatalog(t))
	toggle(t, s, "mat", "base")
	require.Len(t, s.Active(), 1)
	require.Len(t, s.Extras(), 1)
	require.Equal(t, "mat", s.Extras()[0].ID)
}

func TestSnapshotRestore(t *testing.T) {
	cat := testCatalog(t)
	s := selection.New(cat)
	toggle(t, s, "pro", "auto", "190hp", "graphito")

	snap := s.Snapshot()
	require.Equal(t, []string{"pro", "auto", "190hp", "metallic"}, snap.Options)

	other := selection.New(cat)
	removed, err := other.Restore(snap)
	require.NoError(t, err)
	require.Empty(t, removed)
	require.Equal(t, s.Selected(), other.Selected())
	require.True(t, other.IsActive("graphito"))

	removed, err = other.Restore(selection.Snapshot{Options: []string{"190hp", "base", "pro"}})
	require.NoError(t, err)
	require.Equal(t, []string{"190hp"}, removed)
	require.Equal(t, []string{"pro"}, other.Selected())

	_, err = other.Restore(selection.Snapshot{Options: []string{"ghost"}})
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.Equal(t, []string{"pro"}, other.Selected())

	other.Reset()
	require.Empty(t, other.Selected())
}

package brands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	c, err := DefaultCatalog()
	require.NoError(t, err)
	reg, err := NewRegistry(c)
	require.NoError(t, err)
	return reg
}

func TestDefaultCatalogIsValid(t *testing.T) {
	reg := defaultRegistry(t)
	for _, cat := range Categories {
		assert.NotEmpty(t, reg.Brands(cat), "category %s", cat)
		assert.Equal(t, cat, reg.Default(cat).Category)
	}
}

func TestParseCategoryClampsUnknownInput(t *testing.T) {
	assert.Equal(t, CategoryDemi, ParseCategory(" Demi "))
	assert.Equal(t, CategorySemi, ParseCategory("SEMI"))
	assert.Equal(t, CategoryPermanent, ParseCategory(""))
	assert.Equal(t, CategoryPermanent, ParseCategory("balayage"))
}

func TestNormalizeBrandName(t *testing.T) {
	reg := defaultRegistry(t)
	for _, tc := range []struct {
		name string
		cat  Category
		raw  string
		want string
	}{
		{name: "exact ignores case", cat: CategoryDemi, raw: "redken shades eq", want: "Redken Shades EQ"},
		{name: "first token", cat: CategoryDemi, raw: "pravana toner", want: "Pravana ChromaSilk Express Tones"},
		{name: "last token", cat: CategoryPermanent, raw: "something topchic", want: "Goldwell Topchic"},
		{name: "registration order wins", cat: CategoryPermanent, raw: "wella", want: "Wella Koleston Perfect"},
		{name: "other category brand ignored", cat: CategorySemi, raw: "Redken Shades EQ", want: "Pravana ChromaSilk Vivids"},
		{name: "empty falls back to default", cat: CategoryPermanent, raw: "  ", want: "Redken Color Gels Lacquers"},
		{name: "unknown falls back to default", cat: CategoryDemi, raw: "acme gloss", want: "Redken Shades EQ"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, reg.NormalizeBrandName(tc.cat, tc.raw))
		})
	}
}

func TestCanonicalDeveloper(t *testing.T) {
	for _, tc := range []struct {
		developer string
		want      string
	}{
		{"Shades EQ Processing Solution", "Shades EQ Processing Solution"},
		{"Welloxon Perfect 6% (20 vol) / 9% (30 vol)", "Welloxon Perfect"},
		{"PRAVANA Zero Lift Creme Developer or 10 Volume Creme Developer", "PRAVANA Zero Lift Creme Developer"},
		{"Pro-oxide Cream Developer 20 Volume", "Pro-oxide Cream Developer"},
		{"Color Touch Emulsion 1.9% (6 vol) / 4% (13 vol)", "Color Touch Emulsion"},
		{"Oxydant Creme 20 vol (6%)", "Oxydant Creme"},
		{"None", ""},
		{"", ""},
	} {
		got := Rule{Developer: tc.developer}.CanonicalDeveloper()
		assert.Equal(t, tc.want, got, "developer %q", tc.developer)
	}
}

func TestFixedRatio(t *testing.T) {
	ratio, ok := Rule{Ratio: "1:1.5"}.FixedRatio()
	assert.True(t, ok)
	assert.Equal(t, "1:1.5", ratio)

	_, ok = Rule{Ratio: "RTU"}.FixedRatio()
	assert.False(t, ok)
	_, ok = Rule{Ratio: "1:1 with lotion, 1:2 for gloss"}.FixedRatio()
	assert.False(t, ok)
}

func TestAcceptsShade(t *testing.T) {
	reg := defaultRegistry(t)

	tones, ok := reg.Lookup("Pravana ChromaSilk Express Tones")
	require.True(t, ok)
	assert.True(t, tones.AcceptsShade("Rose"))
	assert.True(t, tones.AcceptsShade("rose"))
	assert.False(t, tones.AcceptsShade("09NB"))

	eq, ok := reg.Lookup("Redken Shades EQ")
	require.True(t, ok)
	assert.True(t, eq.AcceptsShade("07NB"))
	assert.True(t, eq.AcceptsShade("09v"))
	assert.False(t, eq.AcceptsShade("7/43"))
	assert.False(t, eq.AcceptsShade(""))
}

func TestCatalogValidateRejectsBadCatalogs(t *testing.T) {
	base := func() Catalog {
		return Catalog{
			Defaults: map[Category]string{CategoryPermanent: "A", CategoryDemi: "B", CategorySemi: "C"},
			Brands: []Rule{
				{Name: "A", Category: CategoryPermanent, Ratio: "1:1", Developer: "Dev", Patterns: []string{`\d+`}},
				{Name: "B", Category: CategoryDemi, Ratio: "1:2", Developer: "Dev", Shades: []string{"Gold"}},
				{Name: "C", Category: CategorySemi, Ratio: "RTU", Developer: "None", Shades: []string{"Red"}},
			},
		}
	}
	require.NoError(t, base().Validate())

	dup := base()
	dup.Brands = append(dup.Brands, dup.Brands[0])
	assert.Error(t, dup.Validate())

	both := base()
	both.Brands[0].Shades = []string{"x"}
	assert.Error(t, both.Validate())

	wrongDefault := base()
	wrongDefault.Defaults[CategorySemi] = "A"
	assert.Error(t, wrongDefault.Validate())

	rtuDeveloper := base()
	rtuDeveloper.Brands[2].Developer = "Some Developer"
	assert.Error(t, rtuDeveloper.Validate())

	badCategory := base()
	badCategory.Brands[0].Category = "gloss"
	assert.Error(t, badCategory.Validate())

	badPattern := base()
	badPattern.Brands[0].Patterns = []string{"("}
	_, err := NewRegistry(badPattern)
	assert.Error(t, err)
}

func TestSQLiteCatalogRoundTrip(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "brands.db")
	store, err := OpenSQLiteCatalog(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(c))
	require.NoError(t, store.Close())

	reg, err := Open("", path)
	require.NoError(t, err)

	want := defaultRegistry(t)
	for _, cat := range Categories {
		got := reg.Brands(cat)
		exp := want.Brands(cat)
		require.Len(t, got, len(exp))
		for i := range exp {
			assert.Equal(t, exp[i].Name, got[i].Name)
			assert.Equal(t, exp[i].TonerGuard, got[i].TonerGuard)
			assert.Equal(t, exp[i].NeutralBlack, got[i].NeutralBlack)
		}
		assert.Equal(t, want.Default(cat).Name, reg.Default(cat).Name)
	}
	tones, ok := reg.Lookup("Pravana ChromaSilk Express Tones")
	require.True(t, ok)
	assert.True(t, tones.AcceptsShade("Smokey"))
}

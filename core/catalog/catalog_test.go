package catalog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/heatdispatch/core/model"
)

func names(rs []Ranked) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Source.Name
	}
	return out
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Equal(t, 4, c.Len())
	motor, idx, ok := c.Cogeneration()
	require.True(t, ok)
	assert.Equal(t, "GasMotor", motor.Name)
	assert.Equal(t, 3, idx)
	el, _, ok := c.Electric()
	require.True(t, ok)
	assert.Equal(t, 8.0, el.MaxCapacity)
	assert.Equal(t, PolicyCogenFirst, c.Policy())
	assert.Equal(t, 500.0, c.MaxCO2PerPeriod())
}

func TestMeritOrderCogenFirstExcludesCogen(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"Electric", "Gas", "Oil"}, names(c.MeritOrder(300)))
}

func TestMeritOrderCreditsCogeneration(t *testing.T) {
	c := MustBuild(DefaultSources(), Options{Policy: PolicyMeritOrder, MaxCO2PerPeriod: 500})
	// 1100 - 0.5*300 = 950
	assert.Equal(t, []string{"Electric", "Gas", "Oil", "GasMotor"}, names(c.MeritOrder(300)))
	// 1100 - 0.5*1500 = 350, cheaper than gas
	order := c.MeritOrder(1500)
	assert.Equal(t, []string{"Electric", "GasMotor", "Gas", "Oil"}, names(order))
	assert.InDelta(t, 350, order[1].Key, 1e-9)
}

func TestMeritOrderTieBreaks(t *testing.T) {
	sources := []model.Source{
		{Name: "B", MaxCapacity: 1, UnitCost: 100, UnitCO2: 50},
		{Name: "A", MaxCapacity: 1, UnitCost: 100, UnitCO2: 10},
		{Name: "C", MaxCapacity: 1, UnitCost: 100, UnitCO2: 50},
		{Name: "D", MaxCapacity: 1, UnitCost: 20, UnitCO2: 90},
		{Name: "E", MaxCapacity: 1, UnitCost: 100, UnitCO2: 50},
	}
	c := MustBuild(sources, Options{MaxCO2PerPeriod: 100})
	want := []string{"D", "A", "B", "C", "E"}
	for i := 0; i < 20; i++ {
		require.Equal(t, want, names(c.MeritOrder(0)))
	}
}

func TestElectricSpotIndexed(t *testing.T) {
	c := MustBuild(DefaultSources(), Options{MaxCO2PerPeriod: 500, ElectricSpotIndexed: true})
	el, _, _ := c.Electric()
	assert.Equal(t, 1240.0, c.UnitCost(el, 1190))
	assert.Equal(t, []string{"Gas", "Oil", "Electric"}, names(c.MeritOrder(1190)))
}

func TestBuildRejectsInvalidCatalogs(t *testing.T) {
	valid := func() []model.Source { return DefaultSources() }
	cases := map[string]struct {
		sources []model.Source
		opts    Options
	}{
		"empty":        {nil, Options{}},
		"zero cap":     {[]model.Source{{Name: "A", MaxCapacity: 0}}, Options{}},
		"negative cap": {[]model.Source{{Name: "A", MaxCapacity: -1}}, Options{}},
		"no name":      {[]model.Source{{MaxCapacity: 1}}, Options{}},
		"duplicate": {[]model.Source{
			{Name: "A", MaxCapacity: 1},
			{Name: "A", MaxCapacity: 2},
		}, Options{}},
		"cap without rate": {[]model.Source{{Name: "A", MaxCapacity: 1, MaxElectricityOutput: 2}}, Options{}},
		"rate on boiler":   {[]model.Source{{Name: "A", MaxCapacity: 1, ElectricityOutputRate: 0.5, MaxElectricityOutput: 1}}, Options{}},
		"cogen no rate":    {[]model.Source{{Name: "A", Kind: model.KindCogeneration, MaxCapacity: 1}}, Options{}},
		"cogen no cap":     {[]model.Source{{Name: "A", Kind: model.KindCogeneration, MaxCapacity: 1, ElectricityOutputRate: 0.5}}, Options{}},
		"two cogens": {append(valid(), model.Source{
			Name: "Motor2", Kind: model.KindCogeneration, MaxCapacity: 1, ElectricityOutputRate: 0.4, MaxElectricityOutput: 1,
		}), Options{}},
		"two electric":    {append(valid(), model.Source{Name: "E2", Kind: model.KindElectric, MaxCapacity: 1}), Options{}},
		"nan cost":        {[]model.Source{{Name: "A", MaxCapacity: 1, UnitCost: math.NaN()}}, Options{}},
		"negative co2":    {[]model.Source{{Name: "A", MaxCapacity: 1, UnitCO2: -5}}, Options{}},
		"negative budget": {valid(), Options{MaxCO2PerPeriod: -1}},
		"inf budget":      {valid(), Options{MaxCO2PerPeriod: math.Inf(1)}},
		"bad policy":      {valid(), Options{Policy: "cheapest"}},
	}
	for name, c := range cases {
		_, err := Build(c.sources, c.opts)
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if !errors.Is(err, ErrInvalidCatalog) {
			t.Errorf("%s: error %v does not wrap ErrInvalidCatalog", name, err)
		}
	}
}

func TestBuildCopiesSources(t *testing.T) {
	src := DefaultSources()
	c := MustBuild(src, Options{MaxCO2PerPeriod: 500})
	src[0].MaxCapacity = 1000
	assert.Equal(t, 8.0, c.Source(0).MaxCapacity)
	out := c.Sources()
	out[1].UnitCost = 0
	assert.Equal(t, 500.0, c.Source(1).UnitCost)
}

func TestNewFromConfig(t *testing.T) {
	budget := 250.0
	c, err := New(Config{
		Policy:          "merit_order",
		MaxCO2PerPeriod: &budget,
		Sources: []SourceConfig{
			{Name: "Heatpump", Kind: "electric", MaxCapacity: 2, UnitCost: 80},
			{Name: "CHP", MaxCapacity: 3, UnitCost: 900, UnitCO2: 500, ElectricityOutputRate: 0.6, MaxElectricityOutput: 1.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, PolicyMeritOrder, c.Policy())
	assert.Equal(t, 250.0, c.MaxCO2PerPeriod())
	chp, _, ok := c.Cogeneration()
	require.True(t, ok, "kind should be inferred from the output rate")
	assert.Equal(t, "CHP", chp.Name)

	def, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, 4, def.Len())
	assert.Equal(t, float64(DefaultMaxCO2PerPeriod), def.MaxCO2PerPeriod())

	_, err = New(Config{Sources: []SourceConfig{{Name: "X", Kind: "fusion", MaxCapacity: 1}}})
	assert.ErrorIs(t, err, ErrInvalidCatalog)
	_, err = New(Config{Policy: "random"})
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

package router

import (
	"testing"

	"pulso/internal/model"
)

type stubHealth struct {
	primary   bool
	secondary bool
}

func (s stubHealth) IsHealthy(p model.ProcessorKind) bool {
	if p == model.ProcessorPrimary {
		return s.primary
	}
	return s.secondary
}

func TestPreferenceOrder(t *testing.T) {
	cases := []struct {
		name      string
		primary   bool
		secondary bool
		want      []model.ProcessorKind
	}{
		{"both healthy", true, true, []model.ProcessorKind{model.ProcessorPrimary, model.ProcessorSecondary}},
		{"only primary", true, false, []model.ProcessorKind{model.ProcessorPrimary}},
		{"only secondary", false, true, []model.ProcessorKind{model.ProcessorSecondary}},
		{"neither healthy", false, false, []model.ProcessorKind{model.ProcessorPrimary, model.ProcessorSecondary}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(stubHealth{primary: tc.primary, secondary: tc.secondary})
			got := r.PreferenceOrder()

			if len(got) != len(tc.want) {
				t.Fatalf("Expected order %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestPrimaryAlwaysFirstWhenBothHealthy(t *testing.T) {
	r := NewRouter(stubHealth{primary: true, secondary: true})

	for i := 0; i < 10; i++ {
		order := r.PreferenceOrder()
		if order[0] != model.ProcessorPrimary {
			t.Fatalf("Expected primary first, got %s", order[0])
		}
	}
}

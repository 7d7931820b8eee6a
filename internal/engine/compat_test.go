package engine

import "testing"

func TestCompatible(t *testing.T) {
	cases := []struct {
		name string
		a, b Filters
		want bool
	}{
		{
			name: "both open",
			a:    Filters{},
			b:    Filters{},
			want: true,
		},
		{
			name: "mutual cross match",
			a:    Filters{Gender: "f", Preference: "m", Language: "en"},
			b:    Filters{Gender: "m", Preference: "f", Language: "en"},
			want: true,
		},
		{
			name: "one sided preference rejected",
			a:    Filters{Gender: "f", Preference: "f", Language: "en"},
			b:    Filters{Gender: "m", Preference: "f", Language: "en"},
			want: false,
		},
		{
			name: "any preference accepts all",
			a:    Filters{Gender: "f", Preference: PrefAny, Language: "en"},
			b:    Filters{Gender: "m", Preference: PrefAny, Language: "en"},
			want: true,
		},
		{
			name: "undeclared gender matches anyone",
			a:    Filters{Preference: "f", Language: "en"},
			b:    Filters{Gender: "m", Preference: "f", Language: "en"},
			want: true,
		},
		{
			name: "language mismatch",
			a:    Filters{Gender: "f", Preference: "m", Language: "en"},
			b:    Filters{Gender: "m", Preference: "f", Language: "es"},
			want: false,
		},
		{
			name: "open language matches anything",
			a:    Filters{Gender: "f", Preference: "m", Language: PrefAny},
			b:    Filters{Gender: "m", Preference: "f", Language: "es"},
			want: true,
		},
		{
			name: "empty language matches anything",
			a:    Filters{Gender: "f", Preference: "m"},
			b:    Filters{Gender: "m", Preference: "f", Language: "es"},
			want: true,
		},
		{
			name: "same gender with specific cross preferences",
			a:    Filters{Gender: "f", Preference: "m", Language: "en"},
			b:    Filters{Gender: "f", Preference: "m", Language: "en"},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compatible(tc.a, tc.b); got != tc.want {
				t.Errorf("Compatible(%+v, %+v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

// Compatibility must be symmetric for every combination of attribute
// values, since either side of a pairing may be the one scanning.
func TestCompatibleSymmetry(t *testing.T) {
	genders := []string{"", "m", "f"}
	prefs := []string{"", PrefAny, "m", "f"}
	langs := []string{"", PrefAny, "en", "es"}

	var all []Filters
	for _, g := range genders {
		for _, p := range prefs {
			for _, l := range langs {
				all = append(all, Filters{Gender: g, Preference: p, Language: l})
			}
		}
	}

	for _, a := range all {
		for _, b := range all {
			if Compatible(a, b) != Compatible(b, a) {
				t.Fatalf("asymmetric result for %+v / %+v", a, b)
			}
		}
	}
}

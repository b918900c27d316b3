package factor

import (
	"reflect"
	"testing"
)

func TestFactorizeScenarioSeeds(t *testing.T) {
	cases := []struct {
		group, magicK int
		want          []int
	}{
		{1, 8, nil},
		{4, 8, []int{4}},
		{8, 8, []int{8}},
		{16, 8, []int{8, 2}},
		{13, 8, []int{13}},
	}
	for _, c := range cases {
		got, err := Factorize(c.group, c.magicK)
		if err != nil {
			t.Fatalf("Factorize(%d,%d): %v", c.group, c.magicK, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("Factorize(%d,%d) = %v, want %v", c.group, c.magicK, got, c.want)
		}
	}
}

func TestFactorizeProductAlwaysEqualsGroupSize(t *testing.T) {
	for _, g := range []int{2, 3, 5, 6, 7, 12, 17, 24, 32, 100, 127, 256} {
		ks, err := Factorize(g, 8)
		if err != nil {
			t.Fatalf("Factorize(%d): %v", g, err)
		}
		product := 1
		for _, k := range ks {
			product *= k
		}
		if product != g {
			t.Fatalf("Factorize(%d) factors %v, product %d != %d", g, ks, product, g)
		}
		for _, k := range ks {
			if k < 2 {
				t.Fatalf("Factorize(%d): factor %d is not a valid radix", g, k)
			}
		}
	}
}

func TestFactorizeRejectsZero(t *testing.T) {
	if _, err := Factorize(0, 8); err == nil {
		t.Fatalf("expected error for group size 0")
	}
}

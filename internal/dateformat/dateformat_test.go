package dateformat

import "testing"

func TestIsBuiltInDateID(t *testing.T) {
	for id := range 60 {
		want := (id >= 14 && id <= 22) || (id >= 27 && id <= 36) ||
			(id >= 45 && id <= 47) || (id >= 50 && id <= 58)
		if got := IsBuiltInDateID(id); got != want {
			t.Errorf("IsBuiltInDateID(%d) = %v, want %v", id, got, want)
		}
	}
	if IsBuiltInDateID(164) {
		t.Error("custom id 164 reported as built-in date")
	}
}

func TestScanFormatStr(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"[h]:mm", true},
		{"0.00E+00", false},
		{"#.##e-0", false},
		{`"day"0`, false},
		{"[Red]0.00", false},
		{`0 "units"`, false},
		{"dd\"x\"", true},
		{"", false},
	}
	for _, tc := range tests {
		if got := ScanFormatStr(tc.code); got != tc.want {
			t.Errorf("ScanFormatStr(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

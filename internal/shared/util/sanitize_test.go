package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "ttm-statement.pdf", want: "ttm-statement.pdf"},
		{name: "slashes_replaced", in: "q2/ttm.pdf", want: "q2_ttm.pdf"},
		{name: "backslashes_replaced", in: `q2\ttm.pdf`, want: "q2_ttm.pdf"},
		{name: "traversal_rejected", in: "../secret.pdf", wantErr: true},
		{name: "empty_rejected", in: "   ", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SanitizeFileName(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeFileName(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

package blobstore

import "testing"

func TestIsSupported(t *testing.T) {
	cases := map[string]bool{
		"reports/q1.txt":   true,
		"data/export.CSV":  true,
		"nested/blob.json": true,
		"app/output.LOG":   true,
		"image.png":        false,
		"archive.zip":      false,
		"noext":            false,
	}
	for key, want := range cases {
		if got := IsSupported(key); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestMaxObjectSizeConstant(t *testing.T) {
	if MaxObjectSize != 104857600 {
		t.Fatalf("MaxObjectSize = %d, want 104857600", MaxObjectSize)
	}
}

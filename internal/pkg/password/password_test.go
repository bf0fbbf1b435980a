package password

import "testing"

func TestHashVerify(t *testing.T) {
	hash, err := Hash("campus2025")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !Verify("campus2025", hash) {
		t.Fatal("expected password to verify")
	}
	if Verify("campus2026", hash) {
		t.Fatal("wrong password verified")
	}
}

func TestCheckStrength(t *testing.T) {
	cases := map[string]bool{
		"short1":        false,
		"onlyletters":   false,
		"1234567890":    false,
		"lagos2025":     true,
		"Unilag-Study9": true,
	}
	for pw, ok := range cases {
		if err := CheckStrength(pw); (err == nil) != ok {
			t.Errorf("CheckStrength(%q) = %v, want ok=%v", pw, err, ok)
		}
	}
}

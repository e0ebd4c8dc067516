package schema

import "testing"

func TestGoName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"id":              "Id",
		"číslo_protokolu": "CisloProtokolu",
		"Datum od":        "DatumOd",
		"platnost-do":     "PlatnostDo",
		"userID":          "UserID",
		"2nd":             "F2Nd",
		"":                "Col",
		"***":             "Col",
	}
	for in, want := range cases {
		if got := GoName(in); got != want {
			t.Errorf("GoName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNamer_Unique(t *testing.T) {
	t.Parallel()

	n := newNamer()
	got := []string{n.next("id"), n.next("ID"), n.next("i_d"), n.next("Id2")}
	want := []string{"Id", "ID", "ID2", "Id2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names: got %v want %v", got, want)
		}
	}
}

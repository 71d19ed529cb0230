package pathmatch

import (
	"testing"
	"unicode/utf16"
)

func TestMatchRecognisesArchiveGrammars(t *testing.T) {
	cases := []struct {
		in        string
		archive   string
		prefixLen int
		suffix    NormalizedPath
	}{
		{"data1:/map/m10/asset.bin", "data", 7, "map/m10/asset.bin"},
		{"data5://map/m30_00_00_00/someasset.mapbnd.dcx", "data", 7, "map/m30_00_00_00/someasset.mapbnd.dcx"},
		{"gamedata0/menu/title.fmg", "gamedata", 9, "menu/title.fmg"},
		{"game_dlc1/chr/c1000.chrbnd", "dlc", 10, "chr/c1000.chrbnd"},
		{`data2:/sound\fdp.fsb`, "data", 7, "sound/fdp.fsb"},
		{"data3:/a/./b/../c.txt", "data", 7, "a/c.txt"},
	}
	for _, tc := range cases {
		m, ok := MatchString(tc.in)
		if !ok {
			t.Fatalf("MatchString(%q) did not match", tc.in)
		}
		if m.Archive != tc.archive || m.PrefixLen != tc.prefixLen || m.Suffix != tc.suffix {
			t.Fatalf("MatchString(%q)=%+v want archive=%s prefix=%d suffix=%s", tc.in, m, tc.archive, tc.prefixLen, tc.suffix)
		}
	}
}

func TestMatchRejectsNonArchivePaths(t *testing.T) {
	for _, in := range []string{
		"",
		"data1:/",
		"map:/m10/asset.bin",
		"C:/game/data1.bdt",
		".//////map/m10/asset.bin",
		"data12:/x",
		"gamedata",
		"game_dlc",
		"Data1:/x",
		"data1:/a\nb",
		"data\n:/x",
		"data1:/..",
		"data1:/../outside.bin",
		"data1:/a/../../outside.bin",
		"data1:/.",
	} {
		if m, ok := MatchString(in); ok {
			t.Fatalf("MatchString(%q) unexpectedly matched: %+v", in, m)
		}
	}
}

func TestMatchWildcardAcceptsNonASCIIUnit(t *testing.T) {
	m, ok := Match([]uint16{'d', 'a', 't', 'a', 0x00e9, ':', '/', 'x'})
	if !ok || m.PrefixLen != 7 || m.Suffix != "x" {
		t.Fatalf("unexpected match %+v ok=%v", m, ok)
	}
}

func TestDotted(t *testing.T) {
	if got := NormalizedPath("map/m10/asset.bin").Dotted(); got != "./map/m10/asset.bin" {
		t.Fatalf("unexpected dotted form %q", got)
	}
}

func TestMatchAndMatchStringAgree(t *testing.T) {
	in := "game_dlc1/param/x.param"
	fromString, ok := MatchString(in)
	if !ok {
		t.Fatalf("expected %q to match", in)
	}
	var fromUnits Result
	fromUnits, ok = Match(utf16.Encode([]rune(in)))
	if !ok || fromUnits != fromString {
		t.Fatalf("Match=%+v,%v MatchString=%+v", fromUnits, ok, fromString)
	}
	want := Result{Archive: "dlc", PrefixLen: 10, Suffix: "param/x.param"}
	if fromString != want {
		t.Fatalf("got %+v want %+v", fromString, want)
	}
	if got, ok := MatchString("data1:/."); ok || got != (Result{}) {
		t.Fatalf("expected zero Result, got %+v,%v", got, ok)
	}
}

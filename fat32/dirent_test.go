package fat32_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-fat32/fat32vol/fat32"
)

func TestShortName_Encoding(t *testing.T) {
	cases := []struct {
		name  string
		short string
	}{
		{"README", "README     "},
		{"A.TXT", "A       TXT"},
		{"LONGFILENAME.TX", "LONGFIL~TX "},
		{"X.LONGEXT", "X       LO~"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			short, err := fat32.ShortName(tc.name)
			require.NoError(t, err)
			require.Equal(t, tc.short, string(short[:]))
		})
	}
}

func TestValidateName_RejectsIllegalCharacters(t *testing.T) {
	for _, bad := range []string{"", "a/b", "a*b", "a?b", "a.b.c", "a b"} {
		require.Error(t, fat32.ValidateName(bad), "expected %q to be rejected", bad)
	}

	for _, good := range []string{"README", "A.TXT", "D1"} {
		require.NoError(t, fat32.ValidateName(good))
	}
}

func TestFDI_DisplayName(t *testing.T) {
	short, err := fat32.ShortName("A.TXT")
	require.NoError(t, err)

	fdi := fat32.FDI{}
	copy(fdi.Name[:], short[0:8])
	copy(fdi.Ext[:], short[8:11])
	require.Equal(t, "A.TXT", fdi.DisplayName())
}

func TestFDI_DisplayName_NoExtension(t *testing.T) {
	short, err := fat32.ShortName("README")
	require.NoError(t, err)

	fdi := fat32.FDI{}
	copy(fdi.Name[:], short[0:8])
	copy(fdi.Ext[:], short[8:11])
	require.Equal(t, "README", fdi.DisplayName())
}

package obexfs

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleListing = `<?xml version="1.0"?>
<!DOCTYPE folder-listing SYSTEM "obex-folder-listing.dtd">
<folder-listing version="1.0">
<parent-folder/>
<folder name="Pictures" modified="20040115T120000" user-perm="RWD" group-perm="R"/>
<file name="note.txt" size="42" modified="20040115T083000" user-perm="RW"/>
</folder-listing>
`

func TestNextEntryParsesFolderAndFile(t *testing.T) {
	s := &Session{dirlist: []byte(sampleListing)}

	dir, ok := s.NextEntry()
	require.True(t, ok, "expected a folder entry")
	require.Equal(t, "Pictures", dir.Name)
	require.True(t, dir.IsDir)
	wantTime := time.Date(2004, 1, 15, 12, 0, 0, 0, time.Local)
	require.True(t, dir.Mtime.Equal(wantTime), "folder mtime = %v, want %v", dir.Mtime, wantTime)

	file, ok := s.NextEntry()
	require.True(t, ok, "expected a file entry")
	require.Equal(t, "note.txt", file.Name)
	require.False(t, file.IsDir)
	require.EqualValues(t, 42, file.Size)
	require.NotZero(t, file.Mode&syscall.S_IRUSR, "missing owner read bit")
	require.NotZero(t, file.Mode&syscall.S_IWUSR, "missing owner write bit")

	_, ok = s.NextEntry()
	require.False(t, ok, "expected no further entries")
}

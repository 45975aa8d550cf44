/*
This file is part of btrfsclone.

Btrfsclone is free software: you can redistribute it and/or modify it under the terms of the
GNU Lesser General Public License as published by the Free Software Foundation, either
version 3 of the License, or (at your option) any later version.

Btrfsclone is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
See the GNU Lesser General Public License for more details.

You should have received a copy of the GNU Lesser General Public License along with btrfsclone.
If not, see <https://www.gnu.org/licenses/>.
*/

package clone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/cloneconfig"
	"github.com/btrfsclone/btrfsclone/pkg/planner"
)

type fakeTransport struct {
	uuids       map[string]uuid.UUID
	sent        []btrfs.SendReceiveOptions
	setReadOnly map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{uuids: map[string]uuid.UUID{}, setReadOnly: map[string]bool{}}
}

func (f *fakeTransport) ListSubvolumes(string) ([]string, error) { return nil, nil }
func (f *fakeTransport) Introspect(string, string) (*btrfs.SubvolumeShow, error) {
	return nil, nil
}
func (f *fakeTransport) GetReadOnly(string) (bool, error) { return false, nil }
func (f *fakeTransport) SendReceive(opts btrfs.SendReceiveOptions) error {
	f.sent = append(f.sent, opts)
	return nil
}

// materializingTransport additionally creates a real directory at the
// expected received path, standing in for the side effect "btrfs receive"
// has on disk; runStaged's staging.Area depends on that directory existing.
type materializingTransport struct {
	fakeTransport
}

func (f *materializingTransport) SendReceive(opts btrfs.SendReceiveOptions) error {
	if err := f.fakeTransport.SendReceive(opts); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(opts.DestDir, filepath.Base(opts.SourcePath)), 0755)
}

func newMaterializingTransport() *materializingTransport {
	return &materializingTransport{fakeTransport: *newFakeTransport()}
}
func (f *fakeTransport) SnapshotReadOnly(string, string) error { return nil }
func (f *fakeTransport) Delete(string) error                   { return nil }
func (f *fakeTransport) FilesystemUUID(mount string) (uuid.UUID, error) {
	return f.uuids[mount], nil
}
func (f *fakeTransport) SetReadOnly(path string, readonly bool) error {
	f.setReadOnly[path] = readonly
	return nil
}

func noopLogf(int, string, ...interface{}) {}

func TestCheckPreconditionsRejectsSameFilesystem(t *testing.T) {
	old, new := t.TempDir(), t.TempDir()
	transport := newFakeTransport()
	same := uuid.New()
	transport.uuids[old] = same
	transport.uuids[new] = same

	cfg := cloneconfig.Default()
	err := checkPreconditions(transport, old, new, cfg, noopLogf)
	require.ErrorIs(t, err, ErrSameFilesystem)
}

func TestCheckPreconditionsAllowsSameFilesystemWhenForced(t *testing.T) {
	old, new := t.TempDir(), t.TempDir()
	transport := newFakeTransport()
	same := uuid.New()
	transport.uuids[old] = same
	transport.uuids[new] = same

	cfg := cloneconfig.Default()
	cfg.Force = true
	cfg.PreconditionDelay = cloneconfig.Duration(0)
	require.NoError(t, checkPreconditions(transport, old, new, cfg, noopLogf))
}

func TestCheckPreconditionsRejectsNonEmptyDestination(t *testing.T) {
	old, new := t.TempDir(), t.TempDir()
	transport := newFakeTransport()
	transport.uuids[old] = uuid.New()
	transport.uuids[new] = uuid.New()
	require.NoError(t, os.WriteFile(filepath.Join(new, "existing"), []byte("x"), 0644))

	cfg := cloneconfig.Default()
	err := checkPreconditions(transport, old, new, cfg, noopLogf)
	require.ErrorIs(t, err, ErrDestinationNotEmpty)
}

func TestCheckPreconditionsPassesOnCleanDistinctFilesystems(t *testing.T) {
	old, new := t.TempDir(), t.TempDir()
	transport := newFakeTransport()
	transport.uuids[old] = uuid.New()
	transport.uuids[new] = uuid.New()

	cfg := cloneconfig.Default()
	require.NoError(t, checkPreconditions(transport, old, new, cfg, noopLogf))
}

func TestRunDirectCreatesDestinationDirsAndClearsReadOnly(t *testing.T) {
	oldMount := t.TempDir()
	destRoot := t.TempDir()
	transport := newFakeTransport()

	a := &btrfs.Subvolume{ID: 101, MountRoot: oldMount, Path: "a", ROInitial: false}
	b := &btrfs.Subvolume{ID: 102, MountRoot: oldMount, Path: "nested/b", ROInitial: false}
	plan := planner.Plan{
		{Subvolume: a},
		{Subvolume: b, Parent: a, CloneSources: []*btrfs.Subvolume{a}},
	}

	require.NoError(t, runDirect(transport, oldMount, destRoot, plan, noopLogf))

	require.Len(t, transport.sent, 2)
	require.Equal(t, filepath.Join(oldMount, "a"), transport.sent[0].SourcePath)
	require.Equal(t, destRoot, transport.sent[0].DestDir)
	require.Empty(t, transport.sent[0].Parent)

	require.Equal(t, filepath.Join(oldMount, "nested/b"), transport.sent[1].SourcePath)
	require.Equal(t, filepath.Join(destRoot, "nested"), transport.sent[1].DestDir)
	require.Equal(t, filepath.Join(oldMount, "a"), transport.sent[1].Parent)
	require.Equal(t, []string{filepath.Join(oldMount, "a")}, transport.sent[1].CloneSources)

	_, err := os.Stat(filepath.Join(destRoot, "nested"))
	require.NoError(t, err)

	require.False(t, transport.setReadOnly[filepath.Join(destRoot, "a")])
	require.False(t, transport.setReadOnly[filepath.Join(destRoot, "nested/b")])
}

func TestRunStagedReceivesEveryInstructionAndClosesTheArea(t *testing.T) {
	oldMount := t.TempDir()
	destRoot := t.TempDir()
	transport := newMaterializingTransport()

	a := &btrfs.Subvolume{ID: 101, ParentID: 5, MountRoot: oldMount, Path: "a", ROInitial: false}
	b := &btrfs.Subvolume{ID: 102, ParentID: 5, MountRoot: oldMount, Path: "b", ROInitial: false}
	subvols := []*btrfs.Subvolume{a, b}
	plan := planner.Plan{
		{Subvolume: a},
		{Subvolume: b, Parent: a, CloneSources: []*btrfs.Subvolume{a}},
	}

	cfg := cloneconfig.Default()
	cfg.StagingBase = "stg"
	require.NoError(t, runStaged(transport, oldMount, destRoot, subvols, plan, cfg, nil, noopLogf))

	require.Len(t, transport.sent, 2)
	_, err := os.Stat(filepath.Join(destRoot, "a"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(destRoot, "b"))
	require.NoError(t, err)
	// staging base is removed once every subvolume has reached its final
	// position.
	_, err = os.Stat(filepath.Join(destRoot, "stg"))
	require.True(t, os.IsNotExist(err))
}

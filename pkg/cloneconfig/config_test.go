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

package cloneconfig

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btrfsclone/btrfsclone/pkg/planner"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := Default()
	cfg.Strategy = planner.Name("bogus")
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyBinary(t *testing.T) {
	cfg := Default()
	cfg.BtrfsBinary = ""
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeDelay(t *testing.T) {
	cfg := Default()
	cfg.PreconditionDelay = Duration(-time.Second)
	require.Error(t, cfg.Validate())
}

func TestDurationSetParsesAndStringifies(t *testing.T) {
	var d Duration
	require.NoError(t, d.Set("90s"))
	require.Equal(t, Duration(90*time.Second), d)
	require.Equal(t, "1m30s", d.String())
}

func TestDurationSetRejectsGarbage(t *testing.T) {
	var d Duration
	require.Error(t, d.Set("not-a-duration"))
}

func TestDurationHookFuncDecodesStrings(t *testing.T) {
	hook := DurationHookFunc()
	out, err := hook(reflect.TypeOf(""), reflect.TypeOf(Duration(0)), "2m")
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, out)
}

func TestDurationHookFuncPassesThroughNonDurationTargets(t *testing.T) {
	hook := DurationHookFunc()
	out, err := hook(reflect.TypeOf(""), reflect.TypeOf(""), "unchanged")
	require.NoError(t, err)
	require.Equal(t, "unchanged", out)
}

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

package btrfs

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// SubvolumeShow is the projection parsed from "btrfs subvolume show".
type SubvolumeShow struct {
	ID         uint64
	ParentID   uint64
	UUID       uuid.UUID
	ParentUUID uuid.UUID
	Gen        uint64
	Ogen       uint64
	ReadOnly   bool
}

// SendReceiveOptions configures a single incremental (or full) transfer.
type SendReceiveOptions struct {
	// SourcePath is the subvolume being sent.
	SourcePath string
	// DestDir is the directory "btrfs receive" is pointed at.
	DestDir string
	// Parent, if non-empty, is passed as "-p" to send.
	Parent string
	// CloneSources are passed as repeated "-c" flags to send.
	CloneSources []string
	// LogName, when set, is used to derive compressed log file names
	// ("btrfs-send-<LogName>.log.gz" / "btrfs-recv-<LogName>.log.gz")
	// when verbosity is high enough to capture logs to disk.
	LogName string
}

// Transport is a strongly-typed wrapper around the btrfs command-line
// tool. Every method blocks until the underlying subprocess(es) complete;
// no method is safe to call concurrently with another call against the
// same path.
type Transport interface {
	ListSubvolumes(mount string) ([]string, error)
	Introspect(mount, path string) (*SubvolumeShow, error)
	GetReadOnly(path string) (bool, error)
	SetReadOnly(path string, readonly bool) error
	SendReceive(opts SendReceiveOptions) error
	SnapshotReadOnly(src, dst string) error
	Delete(path string) error
	FilesystemUUID(mount string) (uuid.UUID, error)
}

// CLI is the default Transport implementation: it shells out to the
// configured btrfs binary, in the style of canonical-lxd's btrfs storage
// driver (lxd/btrfs.go).
type CLI struct {
	// Binary is the name or path of the btrfs executable. Defaults to
	// "btrfs" when empty.
	Binary string
	// Verbosity controls how many "-v" flags are passed to send/receive
	// and whether their stderr is captured to compressed log files
	// (verbosity >= 2) or in-memory buffers.
	Verbosity int
	// Logger receives progress and diagnostic messages. Defaults to a
	// logger writing to stderr when nil.
	Logger *log.Logger
	// DryRun, when true, logs the commands that would be run without
	// executing any mutating ones.
	DryRun bool
}

// NewCLI returns a CLI transport using the given btrfs binary (or "btrfs"
// if empty).
func NewCLI(binary string, logger *log.Logger, verbosity int) *CLI {
	if binary == "" {
		binary = "btrfs"
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &CLI{Binary: binary, Verbosity: verbosity, Logger: logger}
}

func (c *CLI) logf(level int, format string, args ...interface{}) {
	if c.Verbosity >= level {
		c.Logger.Printf(format, args...)
	}
}

func (c *CLI) verboseFlags() []string {
	flags := make([]string, 0, c.Verbosity)
	for i := 0; i < c.Verbosity; i++ {
		flags = append(flags, "-v")
	}
	return flags
}

func (c *CLI) checkInstalled() error {
	if _, err := exec.LookPath(c.Binary); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, c.Binary)
	}
	return nil
}

func (c *CLI) run(args ...string) ([]byte, error) {
	if err := c.checkInstalled(); err != nil {
		return nil, err
	}
	c.logf(1, "%s %s", c.Binary, strings.Join(args, " "))
	mutating := len(args) >= 2 &&
		((args[0] == "property" && args[1] == "set") ||
			(args[0] == "subvolume" && (args[1] == "snapshot" || args[1] == "delete")))
	if c.DryRun && mutating {
		return nil, nil
	}
	out, err := exec.Command(c.Binary, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", c.Binary, strings.Join(args, " "), err, string(out))
	}
	return out, nil
}

// ListSubvolumes lists the paths of every subvolume under mount, sorted by
// origin generation ascending, via "btrfs subvolume list -t --sort=ogen".
// Header rows (whose leading field is not numeric) are skipped.
func (c *CLI) ListSubvolumes(mount string) ([]string, error) {
	out, err := c.run("subvolume", "list", "-t", "--sort=ogen", mount)
	if err != nil {
		return nil, err
	}
	return parseSubvolumeList(out), nil
}

// parseSubvolumeList extracts the path column (the last whitespace-separated
// field) from each data row of "btrfs subvolume list -t" output.
func parseSubvolumeList(out []byte) []string {
	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if _, err := strconv.ParseUint(fields[0], 10, 64); err != nil {
			// Not a data row; a header line.
			continue
		}
		paths = append(paths, fields[len(fields)-1])
	}
	return paths
}

var showLineRe = regexp.MustCompile(`^\s*([^:]+?)\s*:\s*(.*?)\s*$`)

// Introspect parses "btrfs subvolume show <mount>/<path>" into a
// SubvolumeShow. A parent_uuid printed as "-" normalizes to uuid.Nil.
// Missing required attributes are a hard ErrMissingAttribute.
func (c *CLI) Introspect(mount, path string) (*SubvolumeShow, error) {
	full := filepath.Join(mount, path)
	out, err := c.run("subvolume", "show", full)
	if err != nil {
		return nil, err
	}
	return parseSubvolumeShow(out, full)
}

// parseSubvolumeShow parses the "key: value" body of "btrfs subvolume show"
// output. full is only used to annotate errors.
func parseSubvolumeShow(out []byte, full string) (*SubvolumeShow, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := showLineRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		values[m[1]] = m[2]
	}

	required := []string{"Parent ID", "Parent UUID", "UUID", "Gen at creation", "Generation", "Flags"}
	for _, key := range required {
		if _, ok := values[key]; !ok {
			return nil, fmt.Errorf("%w: %s: %s", ErrMissingAttribute, full, key)
		}
	}

	show := &SubvolumeShow{}
	var err error
	show.ID, err = parseSubvolumeID(values, "Subvolume ID")
	if err != nil {
		return nil, err
	}
	show.ParentID, err = strconv.ParseUint(values["Parent ID"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid Parent ID: %w", full, err)
	}
	show.UUID, err = uuid.Parse(values["UUID"])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid UUID: %w", full, err)
	}
	if pu := values["Parent UUID"]; pu != "-" && pu != "" {
		show.ParentUUID, err = uuid.Parse(pu)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid Parent UUID: %w", full, err)
		}
	}
	show.Gen, err = strconv.ParseUint(values["Generation"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid Generation: %w", full, err)
	}
	show.Ogen, err = strconv.ParseUint(values["Gen at creation"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid Gen at creation: %w", full, err)
	}
	show.ReadOnly = strings.Contains(values["Flags"], "readonly")
	return show, nil
}

// parseSubvolumeID is split out because "Subvolume ID" is absent for the
// top-level subvolume in some btrfs-progs versions; it is not part of the
// required set.
func parseSubvolumeID(values map[string]string, key string) (uint64, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return 5, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

// GetReadOnly reads the ro property via "btrfs property get -ts <path> ro".
func (c *CLI) GetReadOnly(path string) (bool, error) {
	out, err := c.run("property", "get", "-ts", path, "ro")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "ro=true", nil
}

// SetReadOnly writes the ro property via "btrfs property set -ts <path> ro <bool>".
func (c *CLI) SetReadOnly(path string, readonly bool) error {
	_, err := c.run("property", "set", "-ts", path, "ro", strconv.FormatBool(readonly))
	return err
}

// SnapshotReadOnly creates a read-only snapshot via "btrfs subvolume snapshot -r".
func (c *CLI) SnapshotReadOnly(src, dst string) error {
	_, err := c.run("subvolume", "snapshot", "-r", src, dst)
	return err
}

// Delete removes a subvolume via "btrfs subvolume delete".
func (c *CLI) Delete(path string) error {
	_, err := c.run("subvolume", "delete", path)
	return err
}

// FilesystemUUID returns the filesystem UUID reported by
// "btrfs filesystem show <mount>"'s first line.
func (c *CLI) FilesystemUUID(mount string) (uuid.UUID, error) {
	out, err := c.run("filesystem", "show", mount)
	if err != nil {
		return uuid.Nil, err
	}
	return parseFilesystemUUID(out)
}

var filesystemUUIDRe = regexp.MustCompile(`uuid:\s*([-a-f0-9]+)`)

// parseFilesystemUUID extracts the uuid field from the first line of
// "btrfs filesystem show" output.
func parseFilesystemUUID(out []byte) (uuid.UUID, error) {
	lines := strings.SplitN(string(out), "\n", 2)
	if len(lines) == 0 {
		return uuid.Nil, fmt.Errorf("unexpected empty output from filesystem show")
	}
	m := filesystemUUIDRe.FindStringSubmatch(lines[0])
	if m == nil {
		return uuid.Nil, fmt.Errorf("could not find filesystem uuid in: %s", lines[0])
	}
	return uuid.Parse(m[1])
}

// SendReceive launches "btrfs send" and "btrfs receive" as two concurrent
// processes joined by a pipe, waits for both, and returns ErrSendReceive
// if either exits non-zero. Stderr from both is either streamed to
// compressed log files (verbosity >= 2) or captured into buffers included
// in the returned error.
func (c *CLI) SendReceive(opts SendReceiveOptions) error {
	if err := c.checkInstalled(); err != nil {
		return err
	}

	sendArgs := append([]string{"send"}, c.verboseFlags()...)
	if opts.Parent != "" {
		sendArgs = append(sendArgs, "-p", opts.Parent)
	}
	for _, cs := range opts.CloneSources {
		sendArgs = append(sendArgs, "-c", cs)
	}
	sendArgs = append(sendArgs, opts.SourcePath)

	recvArgs := append([]string{"receive"}, c.verboseFlags()...)
	recvArgs = append(recvArgs, opts.DestDir)

	c.logf(0, "%s %s |\n\t %s %s", c.Binary, strings.Join(sendArgs, " "), c.Binary, strings.Join(recvArgs, " "))
	if c.DryRun {
		return nil
	}

	logName := opts.LogName
	if logName == "" {
		logName = strings.ReplaceAll(opts.DestDir, "/", "-")
	}

	var sendStderr, recvStderr io.Writer
	var sendBuf, recvBuf bytes.Buffer
	var sendLogPath, recvLogPath string
	var sendLog, recvLog io.Closer
	if c.Verbosity >= 2 {
		sendLogPath = fmt.Sprintf("btrfs-send-%s.log.gz", logName)
		recvLogPath = fmt.Sprintf("btrfs-recv-%s.log.gz", logName)
		sf, err := os.Create(sendLogPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", sendLogPath, err)
		}
		sgz := gzip.NewWriter(sf)
		rf, err := os.Create(recvLogPath)
		if err != nil {
			sgz.Close()
			sf.Close()
			return fmt.Errorf("creating %s: %w", recvLogPath, err)
		}
		rgz := gzip.NewWriter(rf)
		sendStderr, recvStderr = sgz, rgz
		sendLog, recvLog = multiCloser{sgz, sf}, multiCloser{rgz, rf}
		defer sendLog.Close()
		defer recvLog.Close()
	} else {
		sendStderr, recvStderr = &sendBuf, &recvBuf
	}

	send := exec.Command(c.Binary, sendArgs...)
	recv := exec.Command(c.Binary, recvArgs...)
	send.Stderr = sendStderr
	recv.Stderr = recvStderr

	pipe, err := send.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating send pipe: %w", err)
	}
	recv.Stdin = pipe

	if err := recv.Start(); err != nil {
		return fmt.Errorf("starting btrfs receive: %w", err)
	}
	if err := send.Start(); err != nil {
		return fmt.Errorf("starting btrfs send: %w", err)
	}

	sendErr := send.Wait()
	recvErr := recv.Wait()

	if sendErr != nil || recvErr != nil {
		if c.Verbosity >= 2 {
			return fmt.Errorf("%w for %s -> %s (see %s and %s)", ErrSendReceive, opts.SourcePath, opts.DestDir, sendLogPath, recvLogPath)
		}
		return fmt.Errorf("%w for %s -> %s: send: %v (%s); recv: %v (%s)",
			ErrSendReceive, opts.SourcePath, opts.DestDir, sendErr, sendBuf.String(), recvErr, recvBuf.String())
	}
	return nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

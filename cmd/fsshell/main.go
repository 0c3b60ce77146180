// Command fsshell is an interactive shell over a FileSystem volume. Invoked
// with a volume file as its single argument it auto-mounts that volume.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	filesystem "github.com/skilanet/FileSystem"
)

// config is the environment surface of the shell, FSSHELL_* variables.
type config struct {
	Volume   string `envconfig:"VOLUME"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"warning"`
}

func main() {
	app := &cli.App{
		Name:      "fsshell",
		Usage:     "interactive shell for FileSystem volumes",
		ArgsUsage: "[volume-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level of the filesystem core (overrides FSSHELL_LOG_LEVEL)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	var cfg config
	if err := envconfig.Process("fsshell", &cfg); err != nil {
		return err
	}
	if lvl := ctx.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	core := filesystem.New()
	sh := &shell{core: core, host: afero.NewOsFs(), out: os.Stdout}

	volume := ctx.Args().First()
	if volume == "" {
		volume = cfg.Volume
	}
	if volume != "" {
		if err := core.Mount(volume); err != nil {
			fmt.Printf("Failed to auto-mount volume '%s'. Please use 'format' or 'mount' command.\n", volume)
		} else {
			sh.volume = volume
			fmt.Printf("Volume '%s' auto-mounted.\n", volume)
		}
	}

	fmt.Println("SimpleFS Shell. Type 'help' for commands.")
	sh.loop(os.Stdin)

	if core.Mounted() {
		core.Unmount()
	}
	fmt.Println("Exiting SimpleFS Shell.")
	return nil
}

type shell struct {
	core   *filesystem.Core
	host   afero.Fs
	volume string
	out    io.Writer
}

func (s *shell) loop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		if s.core.Mounted() {
			fmt.Fprintf(s.out, "[%s] > ", s.volume)
		} else {
			fmt.Fprint(s.out, "FS_Shell > ")
		}
		if !scanner.Scan() {
			return
		}

		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		command := strings.ToLower(tokens[0])

		if command == "exit" || command == "quit" {
			return
		}
		s.dispatch(command, tokens)
	}
}

func (s *shell) dispatch(command string, tokens []string) {
	switch command {
	case "help":
		s.printHelp()
	case "format":
		s.cmdFormat(tokens)
	case "mount":
		s.cmdMount(tokens)
	case "unmount":
		s.cmdUnmount()
	default:
		if !s.core.Mounted() {
			fmt.Fprintln(s.out, "No volume mounted. Mount a volume first or format a new one.")
			fmt.Fprintln(s.out, "Available commands: format, mount, help, exit.")
			return
		}
		s.dispatchMounted(command, tokens)
	}
}

func (s *shell) dispatchMounted(command string, tokens []string) {
	switch command {
	case "info":
		s.cmdInfo()
	case "ls":
		s.cmdLs(tokens)
	case "mkdir":
		s.cmdMkdir(tokens)
	case "rmdir":
		s.cmdRmdir(tokens)
	case "create":
		s.cmdCreate(tokens)
	case "rm":
		s.cmdRm(tokens)
	case "write", "append":
		s.cmdWrite(command, tokens)
	case "cat":
		s.cmdCat(tokens)
	case "rename":
		s.cmdRename(tokens)
	case "cp_to_fs":
		s.cmdCopyToFs(tokens)
	case "cp_from_fs":
		s.cmdCopyFromFs(tokens)
	default:
		fmt.Fprintf(s.out, "Unknown command: '%s'. Type 'help' for commands.\n", command)
	}
}

func (s *shell) printHelp() {
	fmt.Fprint(s.out, `
Simple File System Shell Commands:
  format <volume_file> <size_MB>        - Formats a new volume.
  mount <volume_file>                   - Mounts an existing volume.
  unmount                               - Unmounts the current volume.
  info                                  - Shows current volume superblock info (requires mount).
  ls [fs_path]                          - Lists directory contents (default: root '/'). Requires mount.
  mkdir <fs_dir_path>                   - Creates a directory. Requires mount.
  rmdir <fs_dir_path>                   - Removes an empty directory. Requires mount.
  create <fs_file_path>                 - Creates an empty file (or truncates). Requires mount.
  rm <fs_file_path>                     - Removes a file. Requires mount.
  write <fs_file_path> "text ..."       - Writes text to a file (overwrites). Requires mount.
  append <fs_file_path> "text ..."      - Appends text to a file. Requires mount.
  cat <fs_file_path>                    - Prints file content to console. Requires mount.
  rename <old_fs_path> <new_fs_path>    - Renames a file or directory. Requires mount.
  cp_to_fs <host_src_file> <fs_dest_path> - Copies file from host to FS. Requires mount.
  cp_from_fs <fs_src_path> <host_dest_file> - Copies file from FS to host. Requires mount.
  help                                  - Shows this help message.
  exit / quit                           - Exits the shell.

`)
}

func (s *shell) cmdFormat(tokens []string) {
	if len(tokens) != 3 {
		fmt.Fprintln(s.out, "Usage: format <volume_file> <size_MB>")
		return
	}
	if s.core.Mounted() && tokens[1] == s.volume {
		fmt.Fprintln(s.out, "Cannot format currently mounted volume. Unmount first.")
		return
	}
	sizeMB, err := strconv.ParseUint(tokens[2], 10, 64)
	if err != nil || sizeMB == 0 {
		fmt.Fprintf(s.out, "Error: Invalid size_MB value: %s\n", tokens[2])
		return
	}
	if err := s.core.Format(tokens[1], sizeMB); err != nil {
		fmt.Fprintf(s.out, "Failed to format volume '%s'.\n", tokens[1])
		return
	}
	fmt.Fprintf(s.out, "Volume '%s' formatted (%dMB).\n", tokens[1], sizeMB)
}

func (s *shell) cmdMount(tokens []string) {
	if len(tokens) != 2 {
		fmt.Fprintln(s.out, "Usage: mount <volume_file>")
		return
	}
	if s.core.Mounted() {
		s.core.Unmount()
		s.volume = ""
	}
	if err := s.core.Mount(tokens[1]); err != nil {
		fmt.Fprintf(s.out, "Failed to mount volume '%s'.\n", tokens[1])
		return
	}
	s.volume = tokens[1]
	fmt.Fprintf(s.out, "Volume '%s' mounted.\n", s.volume)
}

func (s *shell) cmdUnmount() {
	if !s.core.Mounted() {
		fmt.Fprintln(s.out, "No volume is currently mounted.")
		return
	}
	s.core.Unmount()
	s.volume = ""
	fmt.Fprintln(s.out, "Volume unmounted.")
}

func (s *shell) cmdInfo() {
	header, err := s.core.Header()
	if err != nil {
		fmt.Fprintln(s.out, "No volume mounted.")
		return
	}
	free, _ := s.core.FreeClusters()

	signature := header.Signature[:]
	if i := strings.IndexByte(string(signature), 0); i >= 0 {
		signature = signature[:i]
	}
	fmt.Fprintf(s.out, "--- Superblock Info for %s ---\n", s.volume)
	fmt.Fprintf(s.out, "Signature:         %s\n", signature)
	fmt.Fprintf(s.out, "Volume Size (B):   %d\n", header.VolumeSizeBytes)
	fmt.Fprintf(s.out, "Cluster Size (B):  %d\n", header.ClusterSize)
	fmt.Fprintf(s.out, "Total Clusters:    %d\n", header.TotalClusters)
	fmt.Fprintf(s.out, "Free Clusters:     %d\n", free)
	fmt.Fprintf(s.out, "Data Start Cl:     %d\n", header.DataStartCluster)
	fmt.Fprintf(s.out, "Root Dir Start:    %d\n", header.RootDirStartCluster)
	fmt.Fprintf(s.out, "Root Dir Size:     %d\n", header.RootDirSizeClusters)
	fmt.Fprintf(s.out, "FAT Start:         %d\n", header.FATStartCluster)
	fmt.Fprintf(s.out, "FAT Size:          %d\n", header.FATSizeClusters)
	fmt.Fprintf(s.out, "Bitmap Start:      %d\n", header.BitmapStartCluster)
	fmt.Fprintf(s.out, "Bitmap Size:       %d\n", header.BitmapSizeClusters)
	fmt.Fprintln(s.out, "-------------------------------")
}

func (s *shell) cmdLs(tokens []string) {
	path := "/"
	if len(tokens) > 1 {
		path = tokens[1]
	}
	entries, err := s.core.ListDirectory(path)
	if err != nil {
		fmt.Fprintf(s.out, "(Directory '%s' is empty or does not exist)\n", path)
		return
	}
	for i := range entries {
		kind := "F"
		if entries[i].Type == filesystem.EntityDirectory {
			kind = "D"
		}
		fmt.Fprintf(s.out, "%s %-40s %10d B  (Cl: %d)\n",
			kind, entries[i].NameString(), entries[i].FileSizeBytes, entries[i].FirstCluster)
	}
}

func (s *shell) cmdMkdir(tokens []string) {
	if len(tokens) != 2 {
		fmt.Fprintln(s.out, "Usage: mkdir <fs_dir_path>")
		return
	}
	if err := s.core.CreateDirectory(tokens[1]); err != nil {
		fmt.Fprintf(s.out, "Failed to create directory '%s'.\n", tokens[1])
		return
	}
	fmt.Fprintf(s.out, "Directory '%s' created.\n", tokens[1])
}

func (s *shell) cmdRmdir(tokens []string) {
	if len(tokens) != 2 {
		fmt.Fprintln(s.out, "Usage: rmdir <fs_dir_path>")
		return
	}
	if err := s.core.RemoveDirectory(tokens[1]); err != nil {
		fmt.Fprintf(s.out, "Failed to remove directory '%s'.\n", tokens[1])
		return
	}
	fmt.Fprintf(s.out, "Directory '%s' removed.\n", tokens[1])
}

func (s *shell) cmdCreate(tokens []string) {
	if len(tokens) != 2 {
		fmt.Fprintln(s.out, "Usage: create <fs_file_path>")
		return
	}
	handle, err := s.core.OpenFile(tokens[1], "w")
	if err != nil {
		fmt.Fprintf(s.out, "Failed to create/truncate file '%s'.\n", tokens[1])
		return
	}
	s.core.CloseFile(handle)
	fmt.Fprintf(s.out, "File '%s' created/truncated.\n", tokens[1])
}

func (s *shell) cmdRm(tokens []string) {
	if len(tokens) != 2 {
		fmt.Fprintln(s.out, "Usage: rm <fs_file_path>")
		return
	}
	if err := s.core.RemoveFile(tokens[1]); err != nil {
		fmt.Fprintf(s.out, "Failed to remove file '%s'.\n", tokens[1])
		return
	}
	fmt.Fprintf(s.out, "File '%s' removed.\n", tokens[1])
}

func (s *shell) cmdWrite(command string, tokens []string) {
	if len(tokens) < 3 {
		fmt.Fprintf(s.out, "Usage: %s <fs_file_path> \"text data\"\n", command)
		return
	}
	mode := "w+"
	if command == "append" {
		mode = "a+"
	}
	text := collectText(tokens, 2)

	handle, err := s.core.OpenFile(tokens[1], mode)
	if err != nil {
		fmt.Fprintf(s.out, "Failed to open file '%s' for %s.\n", tokens[1], command)
		return
	}
	defer s.core.CloseFile(handle)

	written, err := s.core.WriteFile(handle, []byte(text))
	if err != nil || written != len(text) {
		fmt.Fprintf(s.out, "Failed to write all text (wrote %d).\n", written)
		return
	}
	fmt.Fprintf(s.out, "%d bytes %sed to '%s'.\n", written, command, tokens[1])
}

func (s *shell) cmdCat(tokens []string) {
	if len(tokens) != 2 {
		fmt.Fprintln(s.out, "Usage: cat <fs_file_path>")
		return
	}
	handle, err := s.core.OpenFile(tokens[1], "r")
	if err != nil {
		fmt.Fprintf(s.out, "Failed to open file '%s' for reading.\n", tokens[1])
		return
	}
	defer s.core.CloseFile(handle)

	buf := make([]byte, 256)
	for {
		n, err := s.core.ReadFile(handle, buf)
		if n > 0 {
			s.out.Write(buf[:n])
		}
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			fmt.Fprintln(s.out, "\nError during read.")
			return
		}
	}
	fmt.Fprintln(s.out)
}

func (s *shell) cmdRename(tokens []string) {
	if len(tokens) != 3 {
		fmt.Fprintln(s.out, "Usage: rename <old_fs_path> <new_fs_path>")
		return
	}
	if err := s.core.RenameFile(tokens[1], tokens[2]); err != nil {
		fmt.Fprintln(s.out, "Rename failed.")
		return
	}
	fmt.Fprintf(s.out, "Renamed '%s' to '%s'.\n", tokens[1], tokens[2])
}

func (s *shell) cmdCopyToFs(tokens []string) {
	if len(tokens) < 3 {
		fmt.Fprintln(s.out, "Usage: cp_to_fs <host_src_file> <fs_dest_path>")
		return
	}
	hostSrc, fsDest := tokens[1], tokens[2]

	data, err := afero.ReadFile(s.host, hostSrc)
	if err != nil {
		fmt.Fprintf(s.out, "Error: Cannot open host source file: %s\n", hostSrc)
		return
	}

	handle, err := s.core.OpenFile(fsDest, "w+")
	if err != nil {
		fmt.Fprintf(s.out, "Error: Cannot open/create destination file in FS: %s\n", fsDest)
		return
	}
	defer s.core.CloseFile(handle)

	if written, err := s.core.WriteFile(handle, data); err != nil || written != len(data) {
		fmt.Fprintf(s.out, "Error: Failed to write all data to FS file: %s\n", fsDest)
		return
	}
	fmt.Fprintf(s.out, "Copied %s to FS:%s\n", hostSrc, fsDest)
}

func (s *shell) cmdCopyFromFs(tokens []string) {
	if len(tokens) < 3 {
		fmt.Fprintln(s.out, "Usage: cp_from_fs <fs_src_path> <host_dest_file>")
		return
	}
	fsSrc, hostDest := tokens[1], tokens[2]

	handle, err := s.core.OpenFile(fsSrc, "r")
	if err != nil {
		fmt.Fprintf(s.out, "Error: Cannot open source file in FS: %s\n", fsSrc)
		return
	}
	defer s.core.CloseFile(handle)

	hostFile, err := s.host.Create(hostDest)
	if err != nil {
		fmt.Fprintf(s.out, "Error: Cannot open host destination file: %s\n", hostDest)
		return
	}
	defer hostFile.Close()

	buf := make([]byte, filesystem.ClusterSizeBytes)
	for {
		n, err := s.core.ReadFile(handle, buf)
		if n > 0 {
			if _, werr := hostFile.Write(buf[:n]); werr != nil {
				fmt.Fprintf(s.out, "Error: Failed to write to host destination file: %s\n", hostDest)
				return
			}
		}
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: Failed to read FS file: %s\n", fsSrc)
			return
		}
	}
	fmt.Fprintf(s.out, "Copied FS:%s to %s\n", fsSrc, hostDest)
}

// collectText returns the text to write. When the token at start begins
// with a quote, the tokens from start on are joined with single spaces and
// the leading and trailing quote are stripped; otherwise only the token at
// start is returned.
func collectText(tokens []string, start int) string {
	if len(tokens) <= start {
		return ""
	}
	if !strings.HasPrefix(tokens[start], "\"") {
		return tokens[start]
	}
	text := strings.Join(tokens[start:], " ")
	text = strings.TrimPrefix(text, "\"")
	text = strings.TrimSuffix(text, "\"")
	return text
}

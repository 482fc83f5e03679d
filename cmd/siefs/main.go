// Command siefs mounts a Siemens mobile phone's file area, reached
// over a serial cable, as a FUSE filesystem.
//
// Usage: siefs [flags] <device> <mountpoint>
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/sirupsen/logrus"

	"github.com/tapwag/siefs/internal/charset"
	"github.com/tapwag/siefs/internal/config"
	"github.com/tapwag/siefs/internal/fuseserver"
	"github.com/tapwag/siefs/internal/obexfs"
	"github.com/tapwag/siefs/internal/serialport"
	"github.com/tapwag/siefs/internal/session"
	"github.com/tapwag/siefs/internal/transport"
)

var log = logrus.WithField("component", "main")

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults, err := config.Defaults()
	if err != nil {
		return err
	}

	var (
		uid        = flag.Uint("uid", uint(os.Getuid()), "owner id")
		gid        = flag.Uint("gid", uint(os.Getgid()), "group id")
		umaskFlag  = flag.String("umask", "022", "umask value (octal)")
		baudrate   = flag.Int("baudrate", defaults.Baud, "communication speed (0 = auto)")
		timeoutDs  = flag.Int("timeout", defaults.TimeoutDs, "inter-byte read timeout, in deciseconds")
		nohide     = flag.Bool("nohide", !defaults.HideTelecom, "don't hide the `telecom` directory")
		iocharset  = flag.String("iocharset", defaults.Charset, "local 8-bit charset filenames are encoded in")
		debug      = flag.Bool("debug", defaults.Debug, "enable debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	args := flag.Args()
	if len(args) != 2 {
		usage()
		return fmt.Errorf("siefs: expected <device> <mountpoint>")
	}
	device, mountpoint := args[0], args[1]

	umaskVal, err := strconv.ParseUint(*umaskFlag, 8, 32)
	if err != nil {
		return fmt.Errorf("siefs: invalid umask %q: %w", *umaskFlag, err)
	}

	codec, err := charset.New(*iocharset)
	if err != nil {
		return err
	}

	port, err := serialport.Open(device, firstNonzero(*baudrate, 57600), *timeoutDs)
	if err != nil {
		return err
	}

	conn := transport.Open(port, *baudrate, *timeoutDs)
	obex := obexfs.New(conn)

	state := session.New(obex, session.Options{
		Uid:         uint32(*uid),
		Gid:         uint32(*gid),
		Umask:       uint32(umaskVal),
		HideTelecom: !*nohide,
		Charset:     codec,
	})

	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("siefs"),
		fuse.Subtype("siefs"),
		fuse.VolumeName(device),
	)
	if err != nil {
		return fmt.Errorf("siefs: mount: %w", err)
	}
	defer c.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("signal received, unmounting")
		_ = state.Shutdown()
		_ = fuse.Unmount(mountpoint)
	}()

	if err := fusefs.Serve(c, fuseserver.FS{State: state}); err != nil {
		return fmt.Errorf("siefs: serve: %w", err)
	}

	<-c.Ready
	if err := c.MountError; err != nil {
		return fmt.Errorf("siefs: mount error: %w", err)
	}
	return nil
}

func firstNonzero(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: siefs [flags] <device> <mountpoint>\n\nFlags:\n")
	flag.PrintDefaults()
}

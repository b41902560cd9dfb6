package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"mutter/audio"
	"mutter/beep"
	"mutter/clipboard"
	"mutter/hotkey"
	"mutter/lease"
	"mutter/log"
	"mutter/refine"
	"mutter/shutdown"
	"mutter/status"
	"mutter/transcriber"
)

var version = "dev"

func main() {
	var (
		flagToggle     = flag.Bool("toggle", false, "toggle-only: every press starts or stops a session")
		flagHold       = flag.Bool("hold", false, "hold-only: record while the key is held")
		flagStream     = flag.Bool("stream", false, "stream audio for live partial transcripts (provider permitting)")
		flagDevice     = flag.String("device", "", "capture device name substring")
		flagLang       = flag.String("lang", "", "transcription language hint, e.g. en")
		flagModel      = flag.String("model", "", "provider model override")
		flagRefine     = flag.Bool("refine", false, "post-process transcripts with an LLM")
		flagProvider   = flag.String("provider", "", "transcription provider: deepgram, groq, whispercpp (default: auto)")
		flagLogPath    = flag.String("logpath", "", "log directory (default: OS state dir)")
		flagRuntimeDir = flag.String("runtimedir", "", "status/lease directory (default: OS runtime dir)")
		flagAutopaste  = flag.Bool("autopaste", false, "inject a paste keystroke after copying the transcript")
		flagLongPress  = flag.Duration("longpress", 0, "hold threshold for the hybrid trigger (default 350ms)")
		flagQuiet      = flag.Bool("quiet", false, "disable feedback tones")
		flagVersion    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *flagVersion {
		fmt.Println("mutter", version)
		return
	}

	logDir, err := log.ResolveDir(*flagLogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve log dir:", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "init logging:", err)
		os.Exit(1)
	}
	defer log.Close()
	log.Infof("mutter %s starting", version)

	br, err := status.New(status.Dir(*flagRuntimeDir))
	if err != nil {
		fatal("status broadcast: %v", err)
	}

	// Single-instance enforcement must finish before any hotkey listener is
	// installed.
	l := lease.New(br.LeasePath())
	rec, err := l.Acquire()
	if err != nil {
		if errors.Is(err, lease.ErrConflict) {
			fatal("another instance is already running")
		}
		fatal("acquire lease: %v", err)
	}
	defer l.Release()
	switch rec {
	case lease.RecoveryStaleCleared:
		log.Info("cleared lease of a dead previous instance")
	case lease.RecoveryUnidentified:
		log.Info("cleared lease held by an unrelated process")
	case lease.RecoveryTerminated:
		log.Info("terminated a previous live instance")
	}

	provider, err := transcriber.New(*flagProvider)
	if err != nil {
		fatal("transcription provider: %v", err)
	}
	log.Infof("provider: %s", provider.Name())

	var refiner refine.Refiner
	if *flagRefine {
		r, err := refine.NewOpenAI()
		if err != nil {
			log.Warnf("refine disabled: %v", err)
		} else {
			refiner = r
		}
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		fatal("audio: %v", err)
	}
	defer audioCtx.Close()
	device := pickDevice(audioCtx, *flagDevice)

	if *flagQuiet {
		beep.Disable()
	}
	beep.Init()
	if err := clipboard.Init(); err != nil {
		log.Warnf("clipboard: %v", err)
	}

	trigger := hotkey.NewTrigger(longPress(*flagLongPress, *flagToggle, *flagHold),
		hotkey.NewSystem(), hotkey.NewHook())
	if err := trigger.Register(); err != nil {
		fatal("hotkey: %v", err)
	}
	defer trigger.Unregister()

	d := newDaemon(daemonConfig{
		Provider:  provider,
		Refiner:   refiner,
		AudioCtx:  audioCtx,
		Device:    device,
		Status:    br,
		Model:     *flagModel,
		Language:  *flagLang,
		Stream:    *flagStream,
		Autopaste: *flagAutopaste,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	go func() {
		s := <-sig
		log.Infof("received %v, shutting down", s)
		cancel()
	}()

	d.Run(ctx, trigger.Events())
	br.Clear()
	log.Info("stopped")
}

// longPress degenerates the hybrid trigger into pure-toggle or pure-hold
// when asked: a threshold that never fires means every press is a toggle,
// one that fires immediately means every press is a hold.
func longPress(d time.Duration, toggle, hold bool) time.Duration {
	switch {
	case toggle:
		return 24 * time.Hour
	case hold:
		return time.Millisecond
	case d > 0:
		return d
	default:
		return 0 // trigger default
	}
}

func pickDevice(ctx audio.Context, name string) *audio.DeviceInfo {
	if name == "" {
		return nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		log.Warnf("list devices: %v", err)
		return nil
	}
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), strings.ToLower(name)) {
			log.Infof("capture device: %s", devices[i].Name)
			return &devices[i]
		}
	}
	log.Warnf("no capture device matches %q, using default", name)
	return nil
}

func fatal(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

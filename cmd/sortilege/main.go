package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/jmfall/sortilege/internal/capture"
	"github.com/jmfall/sortilege/internal/classify"
	"github.com/jmfall/sortilege/internal/controller"
	"github.com/jmfall/sortilege/internal/detector"
	"github.com/jmfall/sortilege/internal/effects"
	"github.com/jmfall/sortilege/internal/server"
	"github.com/jmfall/sortilege/internal/sigil"
	"github.com/jmfall/sortilege/internal/store"
	"github.com/jmfall/sortilege/internal/track"
	"github.com/jmfall/sortilege/internal/tray"
)

func main() {
	var (
		cameraID     = flag.Int("camera", 0, "camera device ID")
		videoPath    = flag.String("video", "", "loop a video file instead of opening the camera")
		modelDir     = flag.String("model-dir", "models", "directory containing spellnet.onnx and labels.txt")
		ortLib       = flag.String("ort-lib", "", "path to the onnxruntime shared library")
		effectsPath  = flag.String("effects", "effects.json", "spell effects configuration file")
		dataDir      = flag.String("data-dir", "", "data directory (default ~/.sortilege)")
		addr         = flag.String("addr", ":8080", "HTTP listen address")
		staticDir    = flag.String("static-dir", "", "directory of static web assets")
		withTray     = flag.Bool("tray", false, "show the system tray icon")
		motionThresh = flag.Float64("motion-threshold", 0.5, "percent of changed pixels that wakes idle detection, 0 disables the gate")
		threshold    = flag.Float64("threshold", 0, "minimum classification confidence for dispatch, 0 keeps the default")
	)
	flag.Parse()

	fmt.Println("Sortilege - Wand Spell Recognition")

	dir := *dataDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dir = filepath.Join(homeDir, ".sortilege")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dir, "sortilege.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	archive, err := store.NewSigilArchive(filepath.Join(dir, "sigils"))
	if err != nil {
		log.Fatalf("Failed to initialize sigil archive: %v", err)
	}

	var source capture.Source
	if *videoPath != "" {
		source = capture.NewLooper(*videoPath)
		fmt.Printf("Looping video file: %s\n", *videoPath)
	} else {
		source = capture.NewCamera(*cameraID)
	}

	finder := detector.New(detector.DefaultConfig())
	defer finder.Close()

	classifierConfig := classify.DefaultConfig(*modelDir)
	classifierConfig.SharedLibraryPath = *ortLib
	classifier, err := classify.NewSpellNet(classifierConfig)
	if err != nil {
		log.Fatalf("Failed to load spell classifier: %v", err)
	}
	defer classifier.Close()
	fmt.Printf("Loaded %d spell labels from %s\n", len(classifier.Labels()), *modelDir)

	registry, err := effects.LoadRegistry(*effectsPath)
	if err != nil {
		log.Fatalf("Failed to load effects config: %v", err)
	}
	if err := registry.Validate(classifier.Labels()); err != nil {
		log.Fatalf("Effects config does not match the classifier: %v", err)
	}

	var gate *capture.MotionGate
	if *motionThresh > 0 {
		gate = capture.NewMotionGate(*motionThresh)
		defer gate.Close()
	}

	controllerConfig := controller.DefaultConfig()
	if *threshold > 0 {
		controllerConfig.ConfidenceThreshold = *threshold
	}

	ctrl, err := controller.New(controllerConfig, controller.Deps{
		Source:     source,
		Finder:     finder,
		Tracker:    track.New(track.DefaultConfig()),
		Renderer:   sigil.NewRenderer(sigil.DefaultConfig()),
		Classifier: classifier,
		Dispatcher: registry,
		Store:      st,
		Archive:    archive,
		Gate:       gate,
	})
	if err != nil {
		log.Fatalf("Failed to build controller: %v", err)
	}

	// Restore the watch/pause state from the previous run
	if v, err := st.Settings().Get("enabled"); err == nil {
		ctrl.SetEnabled(v != "false")
	}

	srv := server.New(server.Config{
		StaticDir:  *staticDir,
		Store:      st,
		Source:     source,
		Controller: ctrl,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Printf("Server failed: %v", err)
			cancel()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if *withTray {
		runTray(ctrl, st, *addr, func() {
			cancel()
		})
		// systray.Quit returned; give the loop a moment to drain.
		select {
		case err := <-errCh:
			exitOn(err)
		case <-time.After(2 * time.Second):
		}
		return
	}

	select {
	case <-sigCh:
		fmt.Println("Shutting down")
		cancel()
		exitOn(<-errCh)
	case err := <-errCh:
		exitOn(err)
	}
}

func exitOn(err error) {
	if err != nil {
		log.Fatalf("Controller failed: %v", err)
	}
}

// runTray blocks in the system tray loop until Quit is clicked.
func runTray(ctrl *controller.Controller, st *store.Store, addr string, onQuit func()) {
	tr := tray.New()
	tr.OnToggle(func(enabled bool) {
		ctrl.SetEnabled(enabled)
		if err := st.Settings().Set("enabled", strconv.FormatBool(enabled)); err != nil {
			log.Printf("Failed to persist enabled state: %v", err)
		}
	})
	tr.OnStatus(func() { openBrowser("http://localhost" + addr) })
	tr.OnQuit(onQuit)

	ctrl.OnEvent(func(ev controller.Event) {
		if ev.State == controller.StateCooldown && ev.Label != "" {
			tr.SetLastSpell(ev.Label, ev.Score)
		}
	})

	tr.Run()
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

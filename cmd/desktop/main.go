package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"nodlang/pkg/asm"
	"nodlang/pkg/compiler"
	"nodlang/pkg/config"
	"nodlang/pkg/ctxlog"
	"nodlang/pkg/graph"
	"nodlang/pkg/grid"
	"nodlang/pkg/session"
	"nodlang/pkg/store"
	"nodlang/pkg/utils"
	"nodlang/pkg/vm"
)

const lineHeight = 14

type action int

const (
	actNone action = iota
	actRun
	actDebug
	actStep
	actTogglePlay
	actReset
	actSave
	actRestore
)

// quickSlot names the snapshot F2 saves and F3 restores.
const quickSlot = "quick"

var (
	textColor   = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	headerColor = color.RGBA{0x80, 0xc0, 0xff, 0xff}
	errorColor  = color.RGBA{0xff, 0x70, 0x70, 0xff}
)

type Game struct {
	ctx     context.Context
	cfg     config.Config
	sess    *session.Session
	face    text.Face
	reload  <-chan string
	snaps   *store.Store
	playing bool
	status  string
}

func newGame(ctx context.Context, cfg config.Config, src string, reload <-chan string, snaps *store.Store) *Game {
	g := &Game{
		ctx:    ctx,
		cfg:    cfg,
		snaps:  snaps,
		sess:   session.New(ctx, session.WithStrict(cfg.Strict), session.WithMaxSteps(cfg.MaxSteps)),
		face:   text.NewGoXFace(basicfont.Face7x13),
		reload: reload,
		status: "F5 run  F9 debug  Space step  P play/pause  F2 save  F3 restore  Esc reset",
	}
	g.sess.SetSource(src)
	g.report(g.sess.Tick(ctx))
	return g
}

func (g *Game) report(err error) {
	if err != nil {
		g.status = "error: " + err.Error()
		g.playing = false
	}
}

// apply performs one user action on the session.
func (g *Game) apply(a action) {
	switch a {
	case actRun:
		g.playing = false
		if err := g.sess.Run(g.ctx); err != nil {
			g.report(err)
			return
		}
		g.status = fmt.Sprintf("done, result %s", g.sess.VM().LastResult())
	case actDebug:
		g.playing = false
		if err := g.sess.Debug(g.ctx); err != nil {
			g.report(err)
			return
		}
		g.status = "debugging"
	case actStep:
		if !g.sess.VM().IsDebugging() {
			g.apply(actDebug)
			return
		}
		g.tick()
	case actTogglePlay:
		if !g.sess.VM().IsDebugging() {
			g.apply(actDebug)
		}
		g.playing = !g.playing
	case actReset:
		g.playing = false
		g.sess.Reset()
		g.status = "reset"
	case actSave:
		data, err := g.sess.VM().Snapshot()
		if err != nil {
			g.report(err)
			return
		}
		if err := g.snaps.Put(quickSlot, g.sess.Fingerprint(), data); err != nil {
			g.report(err)
			return
		}
		g.status = "snapshot saved"
	case actRestore:
		g.playing = false
		e, err := g.snaps.Get(quickSlot)
		if err != nil {
			g.report(err)
			return
		}
		if e.Source != g.sess.Fingerprint() {
			g.report(fmt.Errorf("%w: the source changed", vm.ErrSnapshotMismatch))
			return
		}
		if g.sess.VM().Code() == nil {
			if err := g.sess.Debug(g.ctx); err != nil {
				g.report(err)
				return
			}
		}
		if err := g.sess.VM().Restore(e.Data); err != nil {
			g.report(err)
			return
		}
		g.status = "snapshot restored"
	}
}

func (g *Game) tick() {
	g.report(g.sess.Tick(g.ctx))
	if !g.sess.VM().IsDebugging() && g.playing {
		g.playing = false
		g.status = fmt.Sprintf("done, result %s", g.sess.VM().LastResult())
	}
}

func pressedAction() action {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyF5):
		return actRun
	case inpututil.IsKeyJustPressed(ebiten.KeyF9):
		return actDebug
	case inpututil.IsKeyJustPressed(ebiten.KeySpace), inpututil.IsKeyJustPressed(ebiten.KeyF10):
		return actStep
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		return actTogglePlay
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return actReset
	case inpututil.IsKeyJustPressed(ebiten.KeyF2):
		return actSave
	case inpututil.IsKeyJustPressed(ebiten.KeyF3):
		return actRestore
	}
	return actNone
}

// drainReload takes the newest text sent by the file watcher, if any.
func (g *Game) drainReload() {
	for {
		select {
		case src := <-g.reload:
			g.playing = false
			g.sess.SetSource(src)
			g.report(g.sess.Tick(g.ctx))
			if g.sess.Err() == nil {
				g.status = "reloaded"
			}
		default:
			return
		}
	}
}

func (g *Game) Update() error {
	g.drainReload()
	g.apply(pressedAction())
	if g.playing {
		for i := 0; i < g.cfg.Desktop.StepsPerFrame && g.playing; i++ {
			g.tick()
		}
	}
	return nil
}

// panels returns the title and lines of each panel: source, assembly,
// variables and machine state.
func (g *Game) panels() [4][]string {
	var p [4][]string
	v := g.sess.VM()
	current := 0
	if code := v.Code(); code != nil && v.IsRunning() {
		eip, _ := v.ReadRegister(compiler.EIP)
		current = asm.SourceMap(code)[int(eip.AsInt())]
	}
	p[0] = append([]string{"source"}, numbered(g.sess.Source(), current)...)

	p[1] = []string{"assembly"}
	if code := v.Code(); code != nil {
		eip, _ := v.ReadRegister(compiler.EIP)
		for _, in := range code.Instructions {
			marker := "  "
			if int64(in.Line) == eip.AsInt() && v.IsRunning() {
				marker = "> "
			}
			p[1] = append(p[1], marker+in.String())
		}
	}

	p[2] = []string{"variables"}
	if sc := g.sess.Graph().RootScope(); sc != nil {
		p[2] = append(p[2], scopeVariables(sc, 0)...)
	}

	rax, _ := v.ReadRegister(compiler.RAX)
	rdx, _ := v.ReadRegister(compiler.RDX)
	eip, _ := v.ReadRegister(compiler.EIP)
	p[3] = []string{
		"machine",
		fmt.Sprintf("rax  %s", rax),
		fmt.Sprintf("rdx  %s", rdx),
		fmt.Sprintf("eip  %s", eip),
		fmt.Sprintf("running %t  debugging %t  playing %t", v.IsRunning(), v.IsDebugging(), g.playing),
	}
	if n := g.sess.Graph().Node(v.NextNode()); n != nil {
		p[3] = append(p[3], fmt.Sprintf("next %s (%s)", n.Name, n.Kind))
	}
	p[3] = append(p[3], "", g.status)
	return p
}

// numbered prefixes each line of src with its number. Line current is
// marked.
func numbered(src string, current int) []string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		marker := " "
		if i+1 == current {
			marker = ">"
		}
		lines[i] = fmt.Sprintf("%s%3d  %s", marker, i+1, l)
	}
	return lines
}

// scopeVariables lists the variables of sc and of the scopes below it,
// indented by depth.
func scopeVariables(sc *graph.Scope, depth int) []string {
	var out []string
	indent := strings.Repeat("  ", depth)
	for _, v := range sc.Variables() {
		out = append(out, fmt.Sprintf("%s%s %s = %s", indent, v.Value().Type, v.Name, v.Value().Value))
	}
	for _, child := range sc.Children() {
		if inner := child.InternalScope(); inner != nil {
			out = append(out, scopeVariables(inner, depth+1)...)
			for _, part := range inner.Partitions() {
				out = append(out, scopeVariables(part, depth+1)...)
			}
		}
	}
	return out
}

func (g *Game) drawLines(screen *ebiten.Image, lines []string, r grid.Rect) {
	maxLines := r.H/lineHeight - 1
	for i, l := range lines {
		if i > maxLines {
			break
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(float64(r.X+6), float64(r.Y+4+i*lineHeight))
		switch {
		case i == 0:
			op.ColorScale.ScaleWithColor(headerColor)
		case strings.HasPrefix(l, "error:"):
			op.ColorScale.ScaleWithColor(errorColor)
		default:
			op.ColorScale.ScaleWithColor(textColor)
		}
		text.Draw(screen, l, g.face, op)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	panels := g.panels()
	cells := grid.Cells(len(panels), 2, g.cfg.Desktop.Width, g.cfg.Desktop.Height)
	for i, lines := range panels {
		g.drawLines(screen, lines, cells[i])
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.cfg.Desktop.Width, g.cfg.Desktop.Height
}

// startSnapshotSyncer flushes the snapshot store to dir every interval
// while stop is open.
func startSnapshotSyncer(snaps *store.Store, dir string, interval time.Duration, stop <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if snaps.Dirty() {
				if err := snaps.PersistTo(dir); err != nil {
					logger.Warn("saving snapshots", "dir", dir, "error", err)
				}
			}
		case <-stop:
			return
		}
	}
}

// startWatcher sends the content of path every time it is written, until
// stop is closed. The directory is watched because editors often replace
// files instead of writing them in place.
func startWatcher(path string, out chan<- string, stop <-chan struct{}, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					logger.Warn("reload", "file", path, "error", err)
					continue
				}
				select {
				case out <- string(data):
				case <-stop:
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("watch", "error", err)
			case <-stop:
				return
			}
		}
	}()
	return nil
}

func main() {
	configPath := flag.String("config", config.FileName, "settings file")
	showAsm := flag.Bool("show-asm", false, "print the assembly on start")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [-config nodlang.yaml] [-show-asm] <file.nod>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	src, fullPath, err := utils.ReadSource(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	reload := make(chan string, 1)
	stopWatcher := make(chan struct{})
	if err := startWatcher(fullPath, reload, stopWatcher, logger); err != nil {
		logger.Warn("live reload disabled", "error", err)
	}

	snapDir := filepath.Join(filepath.Dir(fullPath), ".nodlang", strings.TrimSuffix(filepath.Base(fullPath), filepath.Ext(fullPath)))
	snaps := store.New()
	if err := snaps.LoadFrom(snapDir); err != nil {
		logger.Warn("loading snapshots", "dir", snapDir, "error", err)
	}
	stopSyncer := make(chan struct{})
	go startSnapshotSyncer(snaps, snapDir, 3*time.Second, stopSyncer, logger)

	game := newGame(ctx, cfg, src, reload, snaps)
	if *showAsm || cfg.ShowAsm {
		code, err := game.sess.Compile(ctx)
		if err != nil {
			log.Fatalf("Compilation failed: %v", err)
		}
		fmt.Print("Generated Assembly:\n", code, "\n")
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cfg.Desktop.Width, cfg.Desktop.Height)
	ebiten.SetWindowTitle("nodlang - " + filepath.Base(fullPath))

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}

	// Graceful shutdown: stop the background goroutines and do a final flush
	close(stopWatcher)
	close(stopSyncer)
	if snaps.Dirty() {
		if err := snaps.PersistTo(snapDir); err != nil {
			logger.Warn("saving snapshots", "dir", snapDir, "error", err)
		}
	}
}
